package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/underwoo/ncep-reanal/internal/core/decision"
	"github.com/underwoo/ncep-reanal/internal/domain"
	"github.com/underwoo/ncep-reanal/internal/nameparse"
	"github.com/underwoo/ncep-reanal/internal/testutil"
)

// fakeSession implements transfer.Session against in-memory listings.
type fakeSession struct {
	listings map[string][]string // "" is the base directory
	sizes    map[string]int64
	modtimes map[string]time.Time
	content  map[string]string

	changeDirErr error
	listErr      map[string]error
	sizeErr      map[string]error
	modtimeErr   map[string]error
	retrieveErr  map[string]error

	changedTo []string
	retrieved []string
	closed    bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		listings:    make(map[string][]string),
		sizes:       make(map[string]int64),
		modtimes:    make(map[string]time.Time),
		content:     make(map[string]string),
		listErr:     make(map[string]error),
		sizeErr:     make(map[string]error),
		modtimeErr:  make(map[string]error),
		retrieveErr: make(map[string]error),
	}
}

func (f *fakeSession) ChangeDir(path string) error {
	if f.changeDirErr != nil {
		return f.changeDirErr
	}
	f.changedTo = append(f.changedTo, path)
	return nil
}

func (f *fakeSession) List(path string) ([]string, error) {
	if err := f.listErr[path]; err != nil {
		return nil, err
	}
	names, ok := f.listings[path]
	if !ok {
		return nil, errors.New("no such directory")
	}
	return names, nil
}

func (f *fakeSession) Size(path string) (int64, error) {
	if err := f.sizeErr[path]; err != nil {
		return 0, err
	}
	return f.sizes[path], nil
}

func (f *fakeSession) ModTime(path string) (time.Time, error) {
	if err := f.modtimeErr[path]; err != nil {
		return time.Time{}, err
	}
	return f.modtimes[path], nil
}

func (f *fakeSession) Retrieve(remotePath, localPath string) error {
	if err := f.retrieveErr[remotePath]; err != nil {
		return err
	}
	f.retrieved = append(f.retrieved, remotePath)
	return os.WriteFile(localPath, []byte(f.content[remotePath]), 0644)
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func newWalker(s *fakeSession, root string) *Walker {
	return New(s, nameparse.New("cdas2"), decision.NewFreshnessDecider(),
		"pub/data/nccf/com/cdas2/prod", root, nil)
}

func TestRun_EndToEnd(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101", "badname"}
	s.listings["cdas2.20230101"] = []string{"cdas2.t00z.sanl", "cdas2.t06z.sanl"}
	s.content["cdas2.20230101/cdas2.t00z.sanl"] = "analysis 00"
	s.content["cdas2.20230101/cdas2.t06z.sanl"] = "analysis 06"

	sum, err := newWalker(s, root).Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sum.Downloaded != 2 {
		t.Errorf("Expected 2 downloads, got %d", sum.Downloaded)
	}
	if sum.DirsScanned != 1 || sum.DirsSkipped != 1 {
		t.Errorf("Expected 1 scanned / 1 skipped directory, got %d/%d", sum.DirsScanned, sum.DirsSkipped)
	}

	for _, name := range []string{"sig.anl.2023010100.ieee", "sig.anl.2023010106.ieee"} {
		if _, err := os.Stat(filepath.Join(root, "2023jan", name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
	if s.changedTo[0] != "pub/data/nccf/com/cdas2/prod" {
		t.Errorf("Expected base navigation, got %v", s.changedTo)
	}
}

func TestRun_Idempotent(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101"}
	s.listings["cdas2.20230101"] = []string{"cdas2.t00z.sanl"}
	remote := "cdas2.20230101/cdas2.t00z.sanl"
	s.content[remote] = "analysis 00"
	s.sizes[remote] = int64(len(s.content[remote]))
	s.modtimes[remote] = time.Now().Add(-time.Hour)

	w := newWalker(s, root)

	first, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error on first run: %v", err)
	}
	if first.Downloaded != 1 {
		t.Fatalf("Expected 1 download on first run, got %d", first.Downloaded)
	}

	second, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error on second run: %v", err)
	}
	if second.Downloaded != 0 || second.Skipped != 1 {
		t.Errorf("Expected second run to skip everything, got %+v", second)
	}
	if len(s.retrieved) != 1 {
		t.Errorf("Expected exactly one retrieval across both runs, got %d", len(s.retrieved))
	}
}

func TestRun_FailureIsolation_BetweenDirectories(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101", "cdas2.20230102", "cdas2.20230103"}
	s.listings["cdas2.20230101"] = []string{"cdas2.t00z.sanl"}
	s.listErr["cdas2.20230102"] = errors.New("550 permission denied")
	s.listings["cdas2.20230103"] = []string{"cdas2.t12z.sanl"}
	s.content["cdas2.20230101/cdas2.t00z.sanl"] = "a"
	s.content["cdas2.20230103/cdas2.t12z.sanl"] = "b"

	sum, err := newWalker(s, root).Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sum.Downloaded != 2 {
		t.Errorf("Expected directories before and after the failure to be processed, got %d downloads", sum.Downloaded)
	}
	if sum.DirsSkipped != 1 {
		t.Errorf("Expected 1 skipped directory, got %d", sum.DirsSkipped)
	}
}

func TestRun_FailureIsolation_BetweenFiles(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101"}
	s.listings["cdas2.20230101"] = []string{"cdas2.t00z.sanl", "cdas2.t06z.sanl", "cdas2.t12z.sanl"}
	s.retrieveErr["cdas2.20230101/cdas2.t06z.sanl"] = errors.New("426 connection closed")
	s.content["cdas2.20230101/cdas2.t00z.sanl"] = "a"
	s.content["cdas2.20230101/cdas2.t12z.sanl"] = "c"

	sum, err := newWalker(s, root).Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sum.Downloaded != 2 || sum.Failed != 1 {
		t.Errorf("Expected 2 downloads and 1 failure, got %+v", sum)
	}
}

func TestRun_MalformedFileNameCountsFailed(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101"}
	s.listings["cdas2.20230101"] = []string{"README", "cdas2.t00z.sanl"}
	s.content["cdas2.20230101/cdas2.t00z.sanl"] = "a"

	sum, err := newWalker(s, root).Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sum.Failed != 1 || sum.Downloaded != 1 {
		t.Errorf("Expected 1 failed name and 1 download, got %+v", sum)
	}
	if len(s.retrieved) != 1 {
		t.Errorf("Expected no retrieval attempt for the malformed name, got %v", s.retrieved)
	}
}

func TestRun_RemoteMetadataFailureForcesDownload(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	// Pre-existing local copy so the walker consults remote metadata.
	outDir := filepath.Join(root, "2023jan")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	testutil.CreateTestFile(t, outDir, "sig.anl.2023010100.ieee", []byte("old"))

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101"}
	s.listings["cdas2.20230101"] = []string{"cdas2.t00z.sanl"}
	remote := "cdas2.20230101/cdas2.t00z.sanl"
	s.content[remote] = "new"
	s.sizeErr[remote] = errors.New("SIZE not supported")

	sum, err := newWalker(s, root).Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sum.Downloaded != 1 {
		t.Errorf("Expected metadata failure to force a download, got %+v", sum)
	}
}

func TestRun_SizeMismatchRedownloads(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	outDir := filepath.Join(root, "2023jan")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		t.Fatal(err)
	}
	testutil.CreateTestFile(t, outDir, "sig.anl.2023010100.ieee", []byte("old content"))

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101"}
	s.listings["cdas2.20230101"] = []string{"cdas2.t00z.sanl"}
	remote := "cdas2.20230101/cdas2.t00z.sanl"
	s.content[remote] = "regenerated"
	s.sizes[remote] = 999 // differs from the local copy
	s.modtimes[remote] = time.Now().Add(-24 * time.Hour)

	sum, err := newWalker(s, root).Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sum.Downloaded != 1 {
		t.Errorf("Expected size mismatch to force a download, got %+v", sum)
	}
}

func TestRun_RootMissingIsFatal(t *testing.T) {
	s := newFakeSession()
	s.listings[""] = []string{}

	_, err := newWalker(s, "/nonexistent/reanal-root").Run(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing root")
	}
	if !domain.IsFatal(err) {
		t.Errorf("Expected fatal error, got %v", err)
	}
	if !errors.Is(err, domain.ErrRootMissing) {
		t.Errorf("Expected ErrRootMissing, got %v", err)
	}
	if len(s.changedTo) != 0 {
		t.Error("Expected no remote navigation after a failed pre-flight")
	}
}

func TestRun_BaseNavigationIsFatal(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.changeDirErr = errors.New("550 no such directory")

	_, err := newWalker(s, root).Run(context.Background())
	if !domain.IsFatal(err) {
		t.Errorf("Expected fatal error, got %v", err)
	}
	if !errors.Is(err, domain.ErrNavigate) {
		t.Errorf("Expected ErrNavigate, got %v", err)
	}
}

func TestRun_BaseListingIsFatal(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.listErr[""] = errors.New("timeout")

	_, err := newWalker(s, root).Run(context.Background())
	if !domain.IsFatal(err) {
		t.Errorf("Expected fatal error, got %v", err)
	}
	if !errors.Is(err, domain.ErrList) {
		t.Errorf("Expected ErrList, got %v", err)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101"}
	s.listings["cdas2.20230101"] = []string{"cdas2.t00z.sanl"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWalker(s, root).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(s.retrieved) != 0 {
		t.Errorf("Expected no retrievals after cancellation, got %v", s.retrieved)
	}
}

func TestRun_MkdirFailureSkipsDirectory(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()

	// A file where the output directory should go makes MkdirAll fail.
	testutil.CreateTestFile(t, root, "2023jan", []byte("in the way"))

	s := newFakeSession()
	s.listings[""] = []string{"cdas2.20230101", "cdas2.20230201"}
	s.listings["cdas2.20230201"] = []string{"cdas2.t00z.sanl"}
	s.content["cdas2.20230201/cdas2.t00z.sanl"] = "a"

	sum, err := newWalker(s, root).Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sum.DirsSkipped != 1 {
		t.Errorf("Expected the blocked directory to be skipped, got %+v", sum)
	}
	if sum.Downloaded != 1 {
		t.Errorf("Expected the sibling directory to be processed, got %+v", sum)
	}
}
