package history

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/starford/fitrunner/internal/models"
)

// RootDir holds the records of the vault root document.
const RootDir = "_root"

// Ext is the extension of record files.
const Ext = ".xml"

var errBadName = errors.New("history: malformed record name")

// DirName is the directory holding the records of p: its dotted path.
func DirName(p models.PagePath) string {
	if p.IsRoot() {
		return RootDir
	}
	return p.String()
}

// PathOf reverses DirName.
func PathOf(dir string) models.PagePath {
	if dir == RootDir {
		return nil
	}
	return models.ParsePath(dir)
}

// FileName is "<yyyyMMddHHmmss>_<right>_<wrong>_<ignores>_<exceptions>.xml".
func FileName(ts time.Time, s models.Summary) string {
	return fmt.Sprintf("%s_%d_%d_%d_%d%s", ts.Format(models.ResultDateFormat), s.Right, s.Wrong, s.Ignores, s.Exceptions, Ext)
}

// RecordFile is the record's path relative to the history directory.
func RecordFile(p models.PagePath, ts time.Time, s models.Summary) string {
	return path.Join(DirName(p), FileName(ts, s))
}

// ParseFileName reads the timestamp and counts back out of a record name.
func ParseFileName(name string) (time.Time, models.Summary, error) {
	base := strings.TrimSuffix(path.Base(name), Ext)
	parts := strings.Split(base, "_")
	if len(parts) != 5 || !strings.HasSuffix(name, Ext) {
		return time.Time{}, models.Summary{}, fmt.Errorf("%w: %s", errBadName, name)
	}
	ts, err := time.ParseInLocation(models.ResultDateFormat, parts[0], time.Local)
	if err != nil {
		return time.Time{}, models.Summary{}, fmt.Errorf("%w: %s", errBadName, name)
	}
	var counts [4]int
	for i, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, models.Summary{}, fmt.Errorf("%w: %s", errBadName, name)
		}
		counts[i] = n
	}
	return ts, models.Summary{Right: counts[0], Wrong: counts[1], Ignores: counts[2], Exceptions: counts[3]}, nil
}

// ParseRecordFile splits a relative record path into its page path,
// timestamp and counts.
func ParseRecordFile(rel string) (Record, error) {
	dir, name := path.Split(strings.TrimPrefix(rel, "/"))
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || strings.Contains(dir, "/") {
		return Record{}, fmt.Errorf("%w: %s", errBadName, rel)
	}
	ts, s, err := ParseFileName(name)
	if err != nil {
		return Record{}, err
	}
	return Record{Path: PathOf(dir), Timestamp: ts, Summary: s, File: dir + "/" + name}, nil
}
