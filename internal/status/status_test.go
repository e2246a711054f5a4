package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name       string
		percent    float64
		remote     Status
		want       Status
		wantChange bool
	}{
		{"complete from reading", 96, Reading, Read, true},
		{"complete from want", 100, WantToRead, Read, true},
		{"complete from dnf", 95, DidNotFinish, Read, true},
		{"already done", 97, Read, Read, false},
		{"reread after done", 40, Read, Reading, true},
		{"corrected to zero after done", 1, Read, WantToRead, true},
		{"activate", 5, WantToRead, Reading, true},
		{"below activation stays want", 4.9, WantToRead, WantToRead, false},
		{"deactivate", 2, Reading, WantToRead, true},
		{"reading stays reading", 50, Reading, Reading, false},
		{"dnf untouched", 50, DidNotFinish, DidNotFinish, false},
		{"unknown untouched", 50, Unknown, Unknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := th.Transition(tt.percent, tt.remote)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantChange, changed)
		})
	}
}

func TestTargetIsStable(t *testing.T) {
	th := DefaultThresholds()
	for _, remote := range []Status{Unknown, WantToRead, Reading, Read, DidNotFinish} {
		for _, pct := range []float64{0, 1, 4.99, 5, 30, 94.9, 95, 100} {
			first := th.Target(pct, remote)
			assert.Equal(t, first, th.Target(pct, first), "pct=%v remote=%v", pct, remote)
		}
	}
}

func TestThresholdSequence(t *testing.T) {
	const eps = 0.5
	for _, activation := range []float64{1, 5, 10, 50} {
		th := Thresholds{Activation: activation, Completion: 95}
		remote := th.Initial(0)
		seq := []Status{remote}
		for _, pct := range []float64{activation - eps, activation + eps, 95 + eps, activation - eps} {
			remote = th.Target(pct, remote)
			seq = append(seq, remote)
		}
		assert.Equal(t, []Status{WantToRead, WantToRead, Reading, Read, WantToRead}, seq, "activation=%v", activation)
	}
}

func TestInitial(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, WantToRead, th.Initial(0))
	assert.Equal(t, WantToRead, th.Initial(4))
	assert.Equal(t, Reading, th.Initial(60))
	assert.Equal(t, Reading, th.Initial(99))
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, Thresholds{Activation: 0, Completion: 95}.Validate())
	assert.Error(t, Thresholds{Activation: 95, Completion: 95}.Validate())
	assert.Error(t, Thresholds{Activation: 5, Completion: 101}.Validate())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "want", WantToRead.String())
	assert.Equal(t, "reading", Reading.String())
	assert.Equal(t, "done", Read.String())
	assert.Equal(t, "unknown(9)", Status(9).String())
}
