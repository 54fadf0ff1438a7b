package permission

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gopanel/gopanel/web"
)

func TestNewGateRequiresFunc(t *testing.T) {
	if _, err := NewGate(nil); !errors.Is(err, ErrNilFunc) {
		t.Fatalf("NewGate(nil) err = %v, want ErrNilFunc", err)
	}
}

func TestCheckCallsFuncExactlyOnce(t *testing.T) {
	calls := 0
	g, err := NewGate(func(req Request, c web.Context) (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	allowed, err := g.Check(Request{Action: ActionRead}, nil)
	if err != nil || !allowed {
		t.Fatalf("Check = %v, %v; want true, nil", allowed, err)
	}
	if calls != 1 {
		t.Errorf("decision function called %d times, want 1", calls)
	}
}

func TestCheckOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		fn      Func
		allowed bool
		wantErr bool
	}{
		{"allow", func(Request, web.Context) (bool, error) { return true, nil }, true, false},
		{"deny", func(Request, web.Context) (bool, error) { return false, nil }, false, false},
		{"error", func(Request, web.Context) (bool, error) { return false, fmt.Errorf("boom") }, false, true},
		{"error with true", func(Request, web.Context) (bool, error) { return true, fmt.Errorf("boom") }, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGate(tt.fn)
			if err != nil {
				t.Fatal(err)
			}
			allowed, err := g.Check(Request{Action: ActionDelete}, nil)
			if allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v", allowed, tt.allowed)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrEvaluation) {
					t.Errorf("err = %v, want ErrEvaluation", err)
				}
			} else if err != nil {
				t.Errorf("err = %v, want nil", err)
			}
		})
	}
}

func TestCheckRejectsMissingAction(t *testing.T) {
	g, err := NewGate(AllowAll)
	if err != nil {
		t.Fatal(err)
	}
	allowed, err := g.Check(Request{App: "blog"}, nil)
	if allowed || !errors.Is(err, ErrEvaluation) {
		t.Fatalf("Check without action = %v, %v; want denial with ErrEvaluation", allowed, err)
	}
}

func TestRequestFieldsReachFunc(t *testing.T) {
	var got Request
	g, _ := NewGate(func(req Request, c web.Context) (bool, error) {
		got = req
		return true, nil
	})
	want := Request{App: "blog", Model: "post", InstanceID: "7", Action: ActionUpdate}
	if _, err := g.Check(want, nil); err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("decision function saw %+v, want %+v", got, want)
	}
}
