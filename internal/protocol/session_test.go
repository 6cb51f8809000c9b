package protocol_test

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/fitrunner/internal/apperr"
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/protocol"
	"github.com/starford/fitrunner/internal/testutil"
)

// pipe returns the client end of a connection whose server end is served by serve.
func pipe(t *testing.T, serve func(net.Conn)) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer server.Close()
		serve(server)
	}()
	t.Cleanup(func() {
		client.Close()
		wg.Wait()
	})
	return client
}

func TestFitSession(t *testing.T) {
	conn := pipe(t, testutil.ServeFit)
	body := "intro\n" + testutil.FitPass + "\n" + testutil.FitFail + "\n" + testutil.FitFail

	var partials []models.Summary
	out, err := protocol.New(protocol.KindFit, protocol.DefaultLimits()).Run(context.Background(), conn,
		protocol.Request{Path: "SuitePage.TestTwo", Body: body},
		func(s models.Summary) { partials = append(partials, s) })
	require.NoError(t, err)

	assert.Equal(t, models.Summary{Right: 1, Wrong: 2}, out.Summary)
	require.NotNil(t, out.Reported)
	assert.Equal(t, out.Summary, *out.Reported)
	assert.Contains(t, out.Content, `<td class="pass">fitnesse.testutil.PassFixture</td>`)
	require.Len(t, partials, 3)
	assert.Equal(t, models.Summary{Right: 1}, partials[0])
}

func TestFitSessionDisconnectKeepsPartialCounts(t *testing.T) {
	conn := pipe(t, testutil.ServeFit)
	body := testutil.FitPass + "\n|CrashFixture|\n"

	out, err := protocol.New(protocol.KindFit, protocol.DefaultLimits()).Run(context.Background(), conn,
		protocol.Request{Body: body}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFixtureDisconnected)
	assert.Equal(t, models.Summary{Right: 1}, out.Summary)
}

func TestFitSessionTimeout(t *testing.T) {
	conn := pipe(t, testutil.ServeFit)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	out, err := protocol.New(protocol.KindFit, protocol.DefaultLimits()).Run(ctx, conn,
		protocol.Request{Body: "|SlowFixture|\n"}, nil)
	assert.ErrorIs(t, err, apperr.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, models.Summary{}, out.Summary)
}

func TestSlimSession(t *testing.T) {
	conn := pipe(t, testutil.ServeSlim)
	out, err := protocol.New(protocol.KindSlim, protocol.DefaultLimits()).Run(context.Background(), conn,
		protocol.Request{Body: testutil.SlimDecisionTable}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Summary{Right: 1}, out.Summary)
	assert.Contains(t, out.Content, `<td class="pass">wow</td>`)
}

func TestSlimSessionScriptAndSymbols(t *testing.T) {
	conn := pipe(t, testutil.ServeSlim)
	body := "|script|EchoFixture|\n" +
		"|$greeting=|echo|hello|\n" +
		"|check|echo|$greeting|$greeting|\n" +
		"|check not|echo|a|b|\n" +
		"|ensure|echo|true|\n" +
		"|reject|echo|true|\n" +
		"|raise|\n"
	out, err := protocol.New(protocol.KindSlim, protocol.DefaultLimits()).Run(context.Background(), conn,
		protocol.Request{Body: body}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Summary{Right: 3, Wrong: 1, Exceptions: 1}, out.Summary)
}

func TestSlimSessionDisconnect(t *testing.T) {
	conn := pipe(t, testutil.ServeSlim)
	body := testutil.SlimDecisionTable + "\n|DT:CrashFixture|\n|a|\n|1|\n"
	out, err := protocol.New(protocol.KindSlim, protocol.DefaultLimits()).Run(context.Background(), conn,
		protocol.Request{Body: body}, nil)
	assert.ErrorIs(t, err, apperr.ErrFixtureDisconnected)
	assert.Equal(t, models.Summary{Right: 1}, out.Summary)
}

func TestSlimSessionBadGreeting(t *testing.T) {
	conn := pipe(t, func(c net.Conn) { _, _ = c.Write([]byte("HTTP/1.1 200 OK\n")) })
	_, err := protocol.New(protocol.KindSlim, protocol.DefaultLimits()).Run(context.Background(), conn,
		protocol.Request{Body: testutil.SlimDecisionTable}, nil)
	assert.ErrorIs(t, err, protocol.ErrProtocol)
}

func TestDealerOpensOneSessionPerDocument(t *testing.T) {
	launcher := &testutil.FakeLauncher{}
	ports, err := protocol.NewPortAllocator(43100, 43110)
	require.NoError(t, err)
	dealer := protocol.NewDealer("127.0.0.1", ports, launcher, 2*time.Second, nil)

	for i := 0; i < 2; i++ {
		sess, err := dealer.Open(context.Background(), protocol.LaunchSpec{Kind: protocol.KindFit, ID: "run-1"})
		require.NoError(t, err)
		out, err := protocol.New(protocol.KindFit, protocol.DefaultLimits()).Run(context.Background(), sess.Conn,
			protocol.Request{Body: testutil.FitPass}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, out.Summary.Right)
		assert.Equal(t, 1, ports.InUse())
		require.NoError(t, sess.Close())
		assert.Equal(t, 0, ports.InUse())
	}
	launcher.Wait()

	launches := launcher.Launches()
	require.Len(t, launches, 2)
	assert.Equal(t, "127.0.0.1", launches[0].Host)
	assert.NotEqual(t, launches[0].Port, launches[1].Port)
}

func TestDealerEphemeralPort(t *testing.T) {
	launcher := &testutil.FakeLauncher{}
	dealer := protocol.NewDealer("", nil, launcher, 2*time.Second, nil)
	sess, err := dealer.Open(context.Background(), protocol.LaunchSpec{Kind: protocol.KindSlim})
	require.NoError(t, err)
	defer sess.Close()
	assert.NotZero(t, sess.Port)
	assert.Equal(t, "slim:fake", dealer.Command(protocol.KindSlim))
}

func TestDealerInfrastructureFailures(t *testing.T) {
	t.Run("launch", func(t *testing.T) {
		ports, _ := protocol.NewPortAllocator(43120, 43121)
		dealer := protocol.NewDealer("127.0.0.1", ports, &testutil.FakeLauncher{FailLaunch: true}, time.Second, nil)
		_, err := dealer.Open(context.Background(), protocol.LaunchSpec{})
		assert.ErrorIs(t, err, apperr.ErrInfrastructure)
		assert.Equal(t, 0, ports.InUse())
	})
	t.Run("accept timeout", func(t *testing.T) {
		dealer := protocol.NewDealer("127.0.0.1", nil, &testutil.FakeLauncher{NoConnect: true}, 50*time.Millisecond, nil)
		_, err := dealer.Open(context.Background(), protocol.LaunchSpec{})
		assert.ErrorIs(t, err, apperr.ErrInfrastructure)
		assert.ErrorIs(t, err, apperr.ErrTimeout)
	})
	t.Run("cancelled while accepting", func(t *testing.T) {
		dealer := protocol.NewDealer("127.0.0.1", nil, &testutil.FakeLauncher{NoConnect: true}, 10*time.Second, nil)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)
		_, err := dealer.Open(ctx, protocol.LaunchSpec{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, apperr.ErrInfrastructure)
	})
}

func TestPortAllocator(t *testing.T) {
	a, err := protocol.NewPortAllocator(5000, 5002)
	require.NoError(t, err)

	var got []int
	for i := 0; i < 3; i++ {
		p, err := a.Acquire()
		require.NoError(t, err)
		got = append(got, p)
	}
	assert.ElementsMatch(t, []int{5000, 5001, 5002}, got)
	_, err = a.Acquire()
	assert.ErrorIs(t, err, protocol.ErrNoPort)

	a.Release(5001)
	p, err := a.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 5001, p)

	_, err = protocol.NewPortAllocator(10, 5)
	assert.Error(t, err)
}

func TestPortAllocatorConcurrent(t *testing.T) {
	a, err := protocol.NewPortAllocator(6000, 6099)
	require.NoError(t, err)
	var (
		mu   sync.Mutex
		seen = map[int]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := a.Acquire()
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[p] {
				t.Errorf("port %d handed out twice", p)
			}
			seen[p] = true
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, a.InUse())
}

func TestExecLauncherMissingCommand(t *testing.T) {
	l := protocol.NewExecLauncher(map[protocol.Kind]string{protocol.KindFit: "fit-server {host} {port}"}, nil)
	_, err := l.Launch(context.Background(), protocol.LaunchSpec{Kind: protocol.KindSlim})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "slim"))
	assert.Equal(t, "fit:fit-server {host} {port}", l.Command(protocol.KindFit))
}
