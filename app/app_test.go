package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/grafana/dskit/modules"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/pacecast/pacecast/pkg/fetch"
)

func TestLogModuleExit(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "clean stop",
			err:  modules.ErrStopProcess,
			want: []string{"level=INFO", "received stop signal via return error", "module=player"},
		},
		{
			name: "cancelled session",
			err:  errors.Wrap(fetch.ErrFetchInterrupted, "running player"),
			want: []string{"level=INFO", "session cancelled", "module=player"},
		},
		{
			name: "stalled session",
			err:  &fetch.StallError{Elapsed: 16 * time.Second},
			want: []string{"level=ERROR", "session stalled", "elapsed=16s"},
		},
		{
			name: "broken stream",
			err:  errors.Wrap(&fetch.StreamReadError{ID: "track-9", Remaining: 4096, Tolerance: 167}, "running player"),
			want: []string{"level=ERROR", "session lost its stream", "media=track-9", "remaining=4096"},
		},
		{
			name: "plain fault",
			err:  errors.New("listen tcp: address already in use"),
			want: []string{"level=ERROR", "module failed", "address already in use"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			a := &App{logger: *slog.New(slog.NewTextHandler(&buf, nil))}

			a.logModuleExit("player", tc.err)

			for _, want := range tc.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}
