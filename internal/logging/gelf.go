package logging

import (
	"fmt"
	"os"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFWriter dials a Graylog GELF UDP input at addr ("host:port").
// The returned writer is meant for Options.Graylog; callers close it on shutdown.
func NewGELFWriter(addr string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("gelf writer %s: %w", addr, err)
	}
	if host, err := os.Hostname(); err == nil {
		w.Facility = "mapviewer@" + host
	} else {
		w.Facility = "mapviewer"
	}
	return w, nil
}
