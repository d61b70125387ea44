package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/kebairia/bacli/internal/store"
	"github.com/kebairia/bacli/internal/target"
)

// UnknownAge is printed for targets without any artifact.
const UnknownAge = "unknown"

// Age is the freshness of a target's newest backup. Known is false when the
// target has no artifact at all.
type Age struct {
	Target target.Target
	Age    time.Duration
	Known  bool
}

// AgeReporter finds the newest artifact of every declared target. Only the
// finest tier is looked at: that is where fresh backups land.
type AgeReporter struct {
	root     string
	declared []target.Target
	store    *store.Store
	finest   string
}

func NewAgeReporter(root string, declared []target.Target, st *store.Store, finest string) *AgeReporter {
	return &AgeReporter{
		root:     root,
		declared: declared,
		store:    st,
		finest:   finest,
	}
}

// ListAges returns one entry per declared target, in declaration order.
// Targets that cannot be read are reported as unknown and their errors
// returned alongside the full list.
func (r *AgeReporter) ListAges() ([]Age, error) {
	ages := make([]Age, 0, len(r.declared))
	var errs error
	for _, t := range r.declared {
		entry := Age{Target: t}
		dir := t.Dir(r.root)
		if _, err := os.Stat(dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = multierr.Append(errs, fmt.Errorf("stat %s: %w", dir, err))
			}
			ages = append(ages, entry)
			continue
		}

		latest, ok, err := r.store.Latest(dir, r.finest)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if ok {
			entry.Age = r.store.Age(latest)
			entry.Known = true
		}
		ages = append(ages, entry)
	}
	return ages, errs
}

// Seconds returns the age in whole seconds, or UnknownAge.
func (a Age) Seconds() string {
	if !a.Known {
		return UnknownAge
	}
	return strconv.FormatInt(int64(a.Age/time.Second), 10)
}

// WriteAges prints one "<target> <seconds|unknown>" line per entry.
func WriteAges(w io.Writer, ages []Age) error {
	for _, a := range ages {
		if _, err := fmt.Fprintf(w, "%s %s\n", a.Target, a.Seconds()); err != nil {
			return err
		}
	}
	return nil
}

type ageRecord struct {
	Target     string `json:"target"`
	AgeSeconds *int64 `json:"age_seconds"`
}

// WriteAgesJSON prints the entries as a JSON array; unknown ages are null.
func WriteAgesJSON(w io.Writer, ages []Age) error {
	records := make([]ageRecord, 0, len(ages))
	for _, a := range ages {
		rec := ageRecord{Target: a.Target.String()}
		if a.Known {
			secs := int64(a.Age / time.Second)
			rec.AgeSeconds = &secs
		}
		records = append(records, rec)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}
