package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistorySaveAndRecent(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for i, disease := range []string{"Apple___healthy", "Tomato___Late_blight", "Corn___Common_rust"} {
		_, err := h.Save(ctx, Diagnosis{
			Disease:     disease,
			Confidence:  0.5 + float32(i)/10,
			ImageSHA256: "abc",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err := h.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Corn___Common_rust", got[0].Disease)
	require.InDelta(t, 0.7, got[0].Confidence, 1e-6)
	require.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Minute)))
	require.Equal(t, "Tomato___Late_blight", got[1].Disease)
	require.NotEmpty(t, got[0].ID)
}

func TestHistorySaveFillsDefaults(t *testing.T) {
	h := openTemp(t)
	d, err := h.Save(context.Background(), Diagnosis{Disease: "Potato___healthy", Confidence: 0.9})
	require.NoError(t, err)
	require.Len(t, d.ID, 36)
	require.False(t, d.CreatedAt.IsZero())

	_, err = h.Save(context.Background(), d)
	require.Error(t, err, "duplicate id")
}

func TestHistoryEmpty(t *testing.T) {
	h := openTemp(t)
	got, err := h.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, got)
}
