package confirm

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlways(t *testing.T) {
	ctx := context.Background()

	yes, err := Always(true).Confirm(ctx, Request{})
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := Always(false).Confirm(ctx, Request{})
	require.NoError(t, err)
	assert.False(t, no)
}

func TestScriptReplaysThenDeclines(t *testing.T) {
	ctx := context.Background()
	s := NewScript(true, false)

	got := make([]bool, 0, 3)
	for _, dest := range []string{"a", "b", "c"} {
		ok, err := s.Confirm(ctx, Request{Destination: dest})
		require.NoError(t, err)
		got = append(got, ok)
	}

	assert.Equal(t, []bool{true, false, false}, got)
	reqs := s.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "c", reqs[2].Destination)
}

func TestPrompterAnswers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"  YES  \n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			ok, err := p.Ask(context.Background(), "Continue?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "Continue? [y/N]: ")
		})
	}
}

func TestPrompterConfirmReadsSuccessiveLines(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("y\nn\n"), &out)
	ctx := context.Background()

	first, err := p.Confirm(ctx, Request{Destination: "/labs/lab-01/data/raw/weather"})
	require.NoError(t, err)
	second, err := p.Confirm(ctx, Request{Destination: "/labs/lab-01/data/raw/taxi"})
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Contains(t, out.String(), "Directory not empty")
	assert.Contains(t, out.String(), "/labs/lab-01/data/raw/weather")
	assert.Contains(t, out.String(), "Download anyway?")
}

func TestPrompterCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPrompter(strings.NewReader("y\n"), &bytes.Buffer{})
	ok, err := p.Ask(ctx, "Continue?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
