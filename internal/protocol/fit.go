package protocol

import (
	"bufio"
	"context"
	"net"
	"strings"

	"github.com/starford/fitrunner/internal/tables"
)

// Fit sends the rendered document as one block and counts the cell
// classes in the annotated chunks the server streams back.
type Fit struct {
	Limits Limits
}

func (f *Fit) Kind() Kind { return KindFit }

func (f *Fit) Run(ctx context.Context, conn net.Conn, req Request, observe Observer) (*Outcome, error) {
	stop := watch(ctx, conn)
	defer stop()

	out := &Outcome{}
	doc := tables.RenderHTML(req.Body)
	if err := WriteFitFrame(conn, []byte(doc), f.Limits); err != nil {
		return out, classify(ctx, err)
	}
	if err := WriteFitFrame(conn, nil, f.Limits); err != nil {
		return out, classify(ctx, err)
	}

	br := bufio.NewReader(conn)
	var content strings.Builder
	for {
		chunk, err := ReadFitFrame(br, f.Limits)
		if err != nil {
			out.Content = content.String()
			out.Summary = CountAnnotations(out.Content)
			return out, classify(ctx, err)
		}
		if len(chunk) == 0 {
			break
		}
		content.Write(chunk)
		observe.notify(CountAnnotations(content.String()))
	}

	out.Content = content.String()
	out.Summary = CountAnnotations(out.Content)
	reported, err := ReadFitCounts(br)
	if err != nil {
		return out, classify(ctx, err)
	}
	out.Reported = &reported
	return out, nil
}
