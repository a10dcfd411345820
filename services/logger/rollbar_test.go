package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kadi/core"
	"github.com/trezcool/kadi/core/roster"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	return NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", TestMode: true})
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := newTestLogger(new(bytes.Buffer))
	std := roster.Student{ID: "s-1", StudentCode: "S-001"}
	other := roster.Student{ID: "s-2", StudentCode: "S-002"}
	extras := map[string]interface{}{"report": "r-1"}

	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{name: "no args", want: []interface{}{"msg"}},
		{name: "extras only", args: []interface{}{extras}, want: []interface{}{"msg", extras}},
		{name: "student is not forwarded", args: []interface{}{extras, std}, want: []interface{}{"msg", extras}},
		{name: "every student is dropped", args: []interface{}{std, extras, other}, want: []interface{}{"msg", extras}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.prepare("msg", tt.args))
		})
	}
}

func TestRollbarLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.Info("report finalized", map[string]interface{}{"report": "r-1"}, roster.Student{ID: "s-1"})
	assert.Contains(t, buf.String(), "[INFO] report finalized")
	assert.Contains(t, buf.String(), "r-1")
}
