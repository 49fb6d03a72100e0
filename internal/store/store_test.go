package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/ranking"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"bm25", true},
		{"msmarco-dev", true},
		{"run_1.v2", true},
		{"2024", true},
		{"", false},
		{"-run", false},
		{".hidden", false},
		{"BM25", false},
		{"my run", false},
		{"../etc", false},
		{"a/b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsValidation(err), "got %v", err)
			}
		})
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	run, err := ranking.RunFromDict(map[string]map[string]float64{
		"q1": {"d1": 0.5, "d2": 0.9},
	})
	require.NoError(t, err)
	run.Name = "bm25"

	doc := NewRunDocument("first", run)
	assert.Equal(t, KindRun, doc.Kind)
	assert.Equal(t, "bm25", doc.RunName)

	back, err := doc.Run()
	require.NoError(t, err)
	assert.Equal(t, "bm25", back.Name)
	ranked, err := back.Ranked("q1")
	require.NoError(t, err)
	assert.Equal(t, "d2", ranked[0].DocID)

	_, err = doc.Qrels()
	assert.True(t, apperrors.IsValidation(err))

	s := doc.Summarize()
	assert.Equal(t, 1, s.Queries)
	assert.Equal(t, 2, s.Docs)
}

func TestDocument_Validate(t *testing.T) {
	doc := &Document{Name: "x", Kind: "other"}
	assert.True(t, apperrors.IsValidation(doc.Validate()))

	doc = &Document{Name: "x", Kind: KindQrels, Data: map[string]map[string]float64{"q1": {}}}
	assert.True(t, apperrors.IsValidation(doc.Validate()))
}

func newRedisStorage(t *testing.T) Storage {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rs, err := NewRedisStorage("redis://"+mr.Addr(), "test:")
	require.NoError(t, err)
	return rs
}

func backends() map[string]func(t *testing.T) Storage {
	return map[string]func(t *testing.T) Storage{
		"memory": func(*testing.T) Storage { return NewMemoryStorage() },
		"file":   func(t *testing.T) Storage { return NewFileStorage(t.TempDir()) },
		"redis":  newRedisStorage,
	}
}

func TestStorage_Contract(t *testing.T) {
	ctx := context.Background()

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			doc := &Document{
				Name: "dev",
				Kind: KindQrels,
				Data: map[string]map[string]float64{"q1": {"d1": 1}},
			}
			require.NoError(t, s.Save(ctx, doc))

			ok, err := s.Exists(ctx, KindQrels, "dev")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.Exists(ctx, KindRun, "dev")
			require.NoError(t, err)
			assert.False(t, ok, "kinds are separate namespaces")

			loaded, err := s.Load(ctx, KindQrels, "dev")
			require.NoError(t, err)
			assert.Equal(t, doc.Data, loaded.Data)

			// Mutating a loaded document must not leak back.
			loaded.Data["q1"]["d1"] = 99
			again, err := s.Load(ctx, KindQrels, "dev")
			require.NoError(t, err)
			assert.Equal(t, 1.0, again.Data["q1"]["d1"])

			require.NoError(t, s.Save(ctx, &Document{Name: "alpha", Kind: KindQrels, Data: doc.Data}))
			names, err := s.List(ctx, KindQrels)
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "dev"}, names)

			runs, err := s.List(ctx, KindRun)
			require.NoError(t, err)
			assert.Empty(t, runs)

			require.NoError(t, s.Delete(ctx, KindQrels, "dev"))
			require.NoError(t, s.Delete(ctx, KindQrels, "dev"))
			_, err = s.Load(ctx, KindQrels, "dev")
			assert.True(t, apperrors.IsNotFound(err))

			names, err = s.List(ctx, KindQrels)
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha"}, names)

			assert.True(t, apperrors.IsValidation(s.Save(ctx, &Document{Name: "x", Kind: "bad"})))
		})
	}
}

func TestFileStorage_Layout(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStorage(dir)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Document{Name: "bm25", Kind: KindRun, Data: map[string]map[string]float64{"q": {"d": 1}}}))
	_, err := os.Stat(filepath.Join(dir, "run", "bm25.json"))
	require.NoError(t, err)

	// Stray files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run", "notes.txt"), []byte("x"), 0644))
	names, err := s.List(ctx, KindRun)
	require.NoError(t, err)
	assert.Equal(t, []string{"bm25"}, names)
}

func TestFileStorage_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run", "bad.json"), []byte("{"), 0644))

	_, err := NewFileStorage(dir).Load(context.Background(), KindRun, "bad")
	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
}

func TestNewRedisStorage_Errors(t *testing.T) {
	_, err := NewRedisStorage("invalid://url", "")
	assert.True(t, apperrors.IsValidation(err))

	_, err = NewRedisStorage("redis://127.0.0.1:1", "")
	assert.Error(t, err)
}

func TestRedisStorage_Keys(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rs, err := NewRedisStorage("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer rs.Close()

	require.NoError(t, rs.Save(context.Background(), &Document{Name: "bm25", Kind: KindRun, Data: map[string]map[string]float64{"q": {"d": 1}}}))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"run:bm25"))
	members, err := mr.Members(DefaultRedisPrefix + "names:run")
	require.NoError(t, err)
	assert.Equal(t, []string{"bm25"}, members)
}

func TestOpenStorage(t *testing.T) {
	s, err := OpenStorage(ServiceConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = OpenStorage(ServiceConfig{Type: BackendFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)

	_, err = OpenStorage(ServiceConfig{Type: BackendFile})
	assert.True(t, apperrors.IsValidation(err))

	_, err = OpenStorage(ServiceConfig{Type: "s3"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStorage(), nil)
	defer svc.Close()

	run := ranking.NewRun()
	run.Name = "tfidf"
	require.NoError(t, run.Add("q1", []string{"d1", "d2"}, []float64{0.1, 0.7}))

	require.NoError(t, svc.SaveRun(ctx, "tfidf", run))
	assert.True(t, apperrors.IsValidation(svc.SaveRun(ctx, "Bad Name", run)))

	got, err := svc.GetRun(ctx, "tfidf")
	require.NoError(t, err)
	assert.Equal(t, "tfidf", got.Name)
	assert.Equal(t, run.ToDict(), got.ToDict())

	_, err = svc.GetQrels(ctx, "tfidf")
	assert.True(t, apperrors.IsNotFound(err))

	qrels, err := ranking.QrelsFromDict(map[string]map[string]float64{"q1": {"d2": 1}})
	require.NoError(t, err)
	require.NoError(t, svc.SaveQrels(ctx, "dev", qrels))

	summaries, err := svc.List(ctx, KindRun)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "tfidf", summaries[0].Name)
	assert.Equal(t, 2, summaries[0].Docs)
	assert.False(t, summaries[0].UpdatedAt.IsZero())

	require.NoError(t, svc.Delete(ctx, KindRun, "tfidf"))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, KindRun, "tfidf")))

	_, err = svc.List(ctx, "other")
	assert.True(t, apperrors.IsValidation(err))
}
