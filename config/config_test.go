package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, LocatorAuto, cfg.FaceLocator)
	require.Equal(t, 1.1, cfg.ScaleFactor)
	require.Equal(t, 5, cfg.MinNeighbors)
	require.Equal(t, 30, cfg.MinSize)
	require.Zero(t, cfg.MaxImageSide)
	require.Len(t, cfg.AgeLabels, 8)
	require.NotEmpty(t, cfg.SessionSecret)
	require.Zero(t, cfg.ClassifyTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("FACE_LOCATOR", "pigo")
	t.Setenv("FACE_SCALE_FACTOR", "1.3")
	t.Setenv("FACE_MIN_NEIGHBORS", "4")
	t.Setenv("AGE_LABELS", "0-18, 19-30 ,31-45,46-60,60+")
	t.Setenv("TLS_DOMAINS", "a.example.com,b.example.com")
	t.Setenv("CLASSIFY_TIMEOUT", "2s")
	t.Setenv("DEBUG_MODE", "yes")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("MODELS_DIR", "/opt/models")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, LocatorPigo, cfg.FaceLocator)
	require.Equal(t, 1.3, cfg.ScaleFactor)
	require.Equal(t, 4, cfg.MinNeighbors)
	require.Equal(t, []string{"0-18", "19-30", "31-45", "46-60", "60+"}, cfg.AgeLabels)
	require.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.TLSDomains)
	require.Equal(t, 2*time.Second, cfg.ClassifyTimeout)
	require.True(t, cfg.DebugMode)
	require.Equal(t, "s3cret", cfg.SessionSecret)
	require.Equal(t, filepath.Join("/opt/models", "age_net.caffemodel"), cfg.ModelPath(cfg.AgeModel))
	require.Equal(t, "/abs/net.caffemodel", cfg.ModelPath("/abs/net.caffemodel"))
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"locator":      {"FACE_LOCATOR", "dnn"},
		"scale":        {"FACE_SCALE_FACTOR", "1.0"},
		"neighbors":    {"FACE_MIN_NEIGHBORS", "-1"},
		"gender vocab": {"GENDER_LABELS", "Male"},
		"timeout":      {"CLASSIFY_TIMEOUT", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_UnparseableNumbers(t *testing.T) {
	cases := map[string]string{
		"FACE_SCALE_FACTOR":  "abc",
		"FACE_MIN_NEIGHBORS": "many",
		"FACE_MIN_SIZE":      "3.5",
		"MAX_IMAGE_SIDE":     "big",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), name)
		})
	}
}
