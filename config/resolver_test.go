package config

import (
	"testing"

	"github.com/poiesic/chunkwise/playbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticPlaybooks satisfies PlaybookSource without a directory scan.
type staticPlaybooks struct {
	configs map[string]*playbook.Config
}

func (s *staticPlaybooks) Resolve(id string) (string, *playbook.Config) {
	normalized := playbook.NormalizeID(id)
	if cfg, ok := s.configs[normalized]; ok {
		return normalized, cfg
	}
	return "", nil
}

func TestResolver_GlobalDefaults(t *testing.T) {
	r := NewResolver(nil)

	cfg := r.Resolve(nil, nil, "")

	assert.Equal(t, DefaultChunkSize, cfg.Chunking.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, DefaultMinChunkSize, cfg.Chunking.MinChunkSize)
	assert.Equal(t, DefaultMaxChunkSize, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, DefaultStrategy, cfg.Chunking.Strategy)
	assert.Equal(t, playbook.DefaultID, cfg.PlaybookID)

	for _, field := range []string{FieldChunkSize, FieldChunkOverlap, FieldMinChunkSize, FieldMaxChunkSize, FieldStrategy, FieldPlaybookID} {
		assert.Equal(t, SourceGlobalDefault, cfg.Trace[field], "field %s", field)
	}
}

func TestResolver_RunConfBeatsManualSettings(t *testing.T) {
	r := NewResolver(nil)

	run := &RunConf{
		ChunkingValues: ChunkingValues{ChunkSize: IntPtr(500)},
	}
	product := &ProductSettings{
		ManualSettings: &ChunkingValues{
			ChunkSize:    IntPtr(1200),
			ChunkOverlap: IntPtr(300),
		},
	}

	cfg := r.Resolve(run, product, "")

	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, SourceRunConf, cfg.Trace[FieldChunkSize])
	assert.Equal(t, 300, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, SourceProductManual, cfg.Trace[FieldChunkOverlap])
	assert.Equal(t, SourceGlobalDefault, cfg.Trace[FieldMinChunkSize])
}

func TestResolver_ChunkingConfigSubObject(t *testing.T) {
	r := NewResolver(nil)

	run := &RunConf{
		ChunkingValues: ChunkingValues{ChunkSize: IntPtr(450)},
		ChunkingConfig: &ChunkingValues{
			ChunkSize:    IntPtr(999),
			ChunkOverlap: IntPtr(50),
		},
	}

	cfg := r.Resolve(run, nil, "")

	// Per-field override wins within level 1; the sub-object still supplies
	// the fields the override leaves unset.
	assert.Equal(t, 450, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, SourceRunConf, cfg.Trace[FieldChunkSize])
	assert.Equal(t, SourceRunConf, cfg.Trace[FieldChunkOverlap])
}

func TestResolver_ForceProductChunkingConfig(t *testing.T) {
	r := NewResolver(nil)

	product := &ProductSettings{
		ChunkingConfig: &ChunkingValues{ChunkSize: IntPtr(640), Strategy: StrPtr("sentence")},
		ManualSettings: &ChunkingValues{ChunkSize: IntPtr(1200)},
	}

	t.Run("forced", func(t *testing.T) {
		run := &RunConf{ForceProductChunkingConfig: true}
		cfg := r.Resolve(run, product, "")

		assert.Equal(t, 640, cfg.Chunking.ChunkSize)
		assert.Equal(t, SourceForceProduct, cfg.Trace[FieldChunkSize])
		assert.Equal(t, "sentence", cfg.Chunking.Strategy)
		assert.Equal(t, SourceForceProduct, cfg.Trace[FieldStrategy])
	})

	t.Run("not forced", func(t *testing.T) {
		cfg := r.Resolve(nil, product, "")

		assert.Equal(t, 1200, cfg.Chunking.ChunkSize)
		assert.Equal(t, SourceProductManual, cfg.Trace[FieldChunkSize])
	})
}

func TestResolver_PlaybookDefaultsAndContentType(t *testing.T) {
	pbs := &staticPlaybooks{configs: map[string]*playbook.Config{
		"tech": {
			ID: "tech",
			Chunking: playbook.ChunkingDefaults{
				MaxTokens:        IntPtr(750),
				HardOverlapChars: IntPtr(120),
				Strategy:         StrPtr("sentence"),
			},
		},
	}}
	r := NewResolver(pbs)

	t.Run("playbook defaults apply", func(t *testing.T) {
		cfg := r.Resolve(nil, nil, "")

		assert.Equal(t, "tech", cfg.PlaybookID)
		assert.Equal(t, 750, cfg.Chunking.ChunkSize)
		assert.Equal(t, SourcePlaybookDefaults, cfg.Trace[FieldChunkSize])
		assert.Equal(t, 120, cfg.Chunking.ChunkOverlap)
		assert.Equal(t, "sentence", cfg.Chunking.Strategy)
		// Playbooks carry no min/max chunk size; those fall through.
		assert.Equal(t, SourceGlobalDefault, cfg.Trace[FieldMinChunkSize])
	})

	t.Run("specific content type refines playbook defaults", func(t *testing.T) {
		product := &ProductSettings{ContentType: "regulatory", Confidence: 0.92}
		cfg := r.Resolve(nil, product, "")

		assert.Equal(t, 600, cfg.Chunking.ChunkSize)
		assert.Equal(t, SourceContentTypeDefaults, cfg.Trace[FieldChunkSize])
		assert.Equal(t, 150, cfg.Chunking.ChunkOverlap)
		assert.Equal(t, SourceContentTypeDefaults, cfg.Trace[FieldChunkOverlap])
		assert.Equal(t, "regulatory", cfg.Chunking.ContentType)
		assert.InDelta(t, 0.92, cfg.Chunking.Confidence, 1e-9)
	})

	t.Run("generic content type is transparent", func(t *testing.T) {
		product := &ProductSettings{ContentType: "general"}
		cfg := r.Resolve(nil, product, "")

		assert.Equal(t, 750, cfg.Chunking.ChunkSize)
		assert.Equal(t, SourcePlaybookDefaults, cfg.Trace[FieldChunkSize])
	})
}

func TestResolver_PlaybookIDPrecedence(t *testing.T) {
	r := NewResolver(nil)

	testCases := []struct {
		name     string
		run      *RunConf
		product  *ProductSettings
		detected string
		wantID   string
		wantSrc  Source
	}{
		{"run wins", &RunConf{PlaybookID: "OPS"}, &ProductSettings{PlaybookID: "REG"}, "SCANNED", "OPS", SourceRunConf},
		{"detected beats product", nil, &ProductSettings{PlaybookID: "REG"}, "SCANNED", "SCANNED", SourceDetectedPlaybook},
		{"product", nil, &ProductSettings{PlaybookID: "REG"}, "", "REG", SourceProduct},
		{"global default", nil, nil, "", playbook.DefaultID, SourceGlobalDefault},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := r.Resolve(tc.run, tc.product, tc.detected)
			assert.Equal(t, tc.wantID, cfg.PlaybookID)
			assert.Equal(t, tc.wantSrc, cfg.Trace[FieldPlaybookID])
		})
	}
}

func TestResolver_EveryFieldTraced(t *testing.T) {
	r := NewResolver(nil)
	cfg := r.Resolve(&RunConf{ChunkingValues: ChunkingValues{Strategy: StrPtr("sentence")}}, nil, "")

	require.Len(t, cfg.Trace, 6)
	for field, src := range cfg.Trace {
		assert.NotEmpty(t, src, "field %s has empty trace", field)
	}
}
