package orientation

import (
	"context"
	"testing"
	"time"

	"github.com/MLTQ/Ponderer/internal/types"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func TestEngine_AllEmptyInputsDegradesToObserveIdle(t *testing.T) {
	e := NewEngine(fakeGenerator{response: `{"user_state": "idle", "disposition": "observe"}`})
	o, err := e.Orient(context.Background(), Input{Now: time.Now()})
	if err != nil {
		t.Fatalf("Orient failed: %v", err)
	}
	if o.UserState != types.UserIdle {
		t.Errorf("UserState = %v, want idle", o.UserState)
	}
	if o.Disposition != types.DispositionObserve {
		t.Errorf("Disposition = %v, want observe", o.Disposition)
	}
}

func TestEngine_UrgentOverridesDeepWork(t *testing.T) {
	resp := `{"user_state": "deep_work", "disposition": "observe", "anomalies": [{"description": "smoke detector low battery chirp", "severity": "urgent"}]}`
	e := NewEngine(fakeGenerator{response: resp})
	o, err := e.Orient(context.Background(), Input{Now: time.Now()})
	if err != nil {
		t.Fatalf("Orient failed: %v", err)
	}
	if o.UserState != types.UserDeepWork {
		t.Fatalf("UserState = %v, want deep_work", o.UserState)
	}
	if o.Disposition != types.DispositionInterrupt {
		t.Errorf("Disposition = %v, want interrupt (Urgent must override DeepWork)", o.Disposition)
	}
}

func TestEngine_DeepWorkClampsNonUrgentInterrupt(t *testing.T) {
	resp := `{"user_state": "deep_work", "disposition": "interrupt", "anomalies": [{"description": "new email", "severity": "notable"}]}`
	e := NewEngine(fakeGenerator{response: resp})
	o, err := e.Orient(context.Background(), Input{Now: time.Now()})
	if err != nil {
		t.Fatalf("Orient failed: %v", err)
	}
	if o.Disposition != types.DispositionObserve {
		t.Errorf("Disposition = %v, want observe (DeepWork clamps sub-Concerning interrupts)", o.Disposition)
	}
}

func TestEngine_DeepWorkAllowsConcerningInterrupt(t *testing.T) {
	resp := `{"user_state": "deep_work", "disposition": "interrupt", "anomalies": [{"description": "disk nearly full", "severity": "concerning"}]}`
	e := NewEngine(fakeGenerator{response: resp})
	o, err := e.Orient(context.Background(), Input{Now: time.Now()})
	if err != nil {
		t.Fatalf("Orient failed: %v", err)
	}
	if o.Disposition != types.DispositionInterrupt {
		t.Errorf("Disposition = %v, want interrupt (Concerning clears the DeepWork clamp)", o.Disposition)
	}
}

func TestEngine_DegradesToObserveOnGenerateError(t *testing.T) {
	e := NewEngine(fakeGenerator{err: errGenerate})
	o, err := e.Orient(context.Background(), Input{Now: time.Now()})
	if err == nil {
		t.Fatal("expected an error from Orient on generate failure")
	}
	if o.Disposition != types.DispositionObserve {
		t.Errorf("Disposition = %v, want observe", o.Disposition)
	}
}

func TestEngine_DegradesToObserveOnUnparseableResponse(t *testing.T) {
	e := NewEngine(fakeGenerator{response: "not json at all"})
	o, err := e.Orient(context.Background(), Input{Now: time.Now()})
	if err == nil {
		t.Fatal("expected an error from Orient on unparseable response")
	}
	if o.Disposition != types.DispositionObserve {
		t.Errorf("Disposition = %v, want observe", o.Disposition)
	}
}

type genErr struct{ msg string }

func (e *genErr) Error() string { return e.msg }

var errGenerate = &genErr{"generation backend unavailable"}
