package proxy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallSettlesExactlyOnce(t *testing.T) {
	c := newCall("tok")
	var loads, errs int
	c.OnLoad(func(*Response) { loads++ })
	c.OnError(func(error) { errs++ })

	c.resolve(&Response{Status: 200})
	c.reject(errors.New("late"))
	c.resolve(&Response{Status: 500})

	res, err := c.Result()
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, 1, loads)
	assert.Zero(t, errs)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after settle")
	}
}

func TestCallRejectBeatsLaterResolve(t *testing.T) {
	c := newCall("tok")
	c.reject(errors.New("first"))
	c.resolve(&Response{Status: 200})

	_, err := c.Result()
	require.ErrorContains(t, err, "first")
}

func TestCallProgressListenerSeparation(t *testing.T) {
	c := newCall("tok")
	var ups, downs []Progress
	c.OnUploadProgress(func(p Progress) { ups = append(ups, p) })
	c.OnDownloadProgress(func(p Progress) { downs = append(downs, p) })

	c.progress(Progress{Upload: true, Loaded: 5, Total: 10})
	c.progress(Progress{Upload: false, Loaded: 7, Total: 10})
	c.progress(Progress{Upload: true, Loaded: 10, Total: 10})

	require.Len(t, ups, 2)
	require.Len(t, downs, 1)
	assert.Equal(t, int64(7), downs[0].Loaded)
}

func TestCallbackReentrySafe(t *testing.T) {
	// callback داخل تسویه دوباره reject می‌زند؛ نباید حلقه یا panic بشود
	c := newCall("tok")
	c.OnLoad(func(*Response) {
		c.reject(errors.New("reentrant"))
	})
	c.resolve(&Response{Status: 200})

	_, err := c.Result()
	require.NoError(t, err)
}
