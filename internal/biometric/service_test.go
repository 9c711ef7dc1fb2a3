package biometric

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/biogate/biogate/internal/acoustic"
	"github.com/biogate/biogate/internal/auth"
	"github.com/biogate/biogate/internal/extractor"
	"github.com/biogate/biogate/internal/history"
	"github.com/biogate/biogate/internal/identity"
	"github.com/biogate/biogate/internal/logging"
)

type fakeExtractor struct {
	mu      sync.Mutex
	face    extractor.FaceResult
	voice   extractor.VoiceResult
	err     error
	block   bool
	paths   []string
	existed []bool
}

func (f *fakeExtractor) record(ctx context.Context, path string) error {
	_, statErr := os.Stat(path)
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.existed = append(f.existed, statErr == nil)
	block, err := f.block, f.err
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeExtractor) ExtractFace(ctx context.Context, path string) (extractor.FaceResult, error) {
	if err := f.record(ctx, path); err != nil {
		return extractor.FaceResult{}, err
	}
	return f.face, nil
}

func (f *fakeExtractor) ExtractVoice(ctx context.Context, path string) (extractor.VoiceResult, error) {
	if err := f.record(ctx, path); err != nil {
		return extractor.VoiceResult{}, err
	}
	return f.voice, nil
}

type fixture struct {
	svc       *Service
	users     identity.Repository
	history   history.Repository
	extractor *fakeExtractor
	uploadDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	f := &fixture{
		users:     identity.NewMemoryRepository(),
		history:   history.NewInMemory(),
		extractor: &fakeExtractor{},
		uploadDir: t.TempDir(),
	}
	f.svc, err = NewService(Deps{
		Users:     f.users,
		History:   f.history,
		Extractor: f.extractor,
		Tokens:    issuer,
		Logger:    logging.Discard(),
	}, Config{UploadDir: f.uploadDir, ExtractTimeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return f
}

// assertNoSamples fails when a temporary sample outlived the request.
func (f *fixture) assertNoSamples(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.uploadDir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected upload dir to be empty, found %d files", len(entries))
	}
}

func (f *fixture) attempts(t *testing.T, username string) []history.Attempt {
	t.Helper()
	user, err := f.users.FindByUsername(context.Background(), username)
	if err != nil {
		return nil
	}
	got, err := f.history.Recent(context.Background(), user.ID, 100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	return got
}

func sampleOf(name string) SampleInput {
	return SampleInput{Filename: name, Data: bytes.NewReader([]byte("raw-sample"))}
}

func aliceFeatures() acoustic.Bundle {
	return acoustic.Bundle{
		F0Stats:              acoustic.Stats{"mean": 100},
		SpectralStats:        acoustic.Stats{"centroid_mean": 2000},
		MFCCStats:            acoustic.Stats{"mean": 5},
		VoiceCharacteristics: acoustic.Stats{"formant_mean": 800},
	}
}

func enrollAliceVoice(t *testing.T, f *fixture) {
	t.Helper()
	f.extractor.voice = extractor.VoiceResult{Embedding: []float64{1, 0, 0}, Features: aliceFeatures()}
	res, err := f.svc.EnrollVoice(context.Background(), EnrollInput{Username: "alice", Email: "alice@example.com", Sample: sampleOf("voice.wav")})
	if err != nil {
		t.Fatalf("enroll voice: %v", err)
	}
	if !res.User.HasVoice() {
		t.Fatalf("expected voice to be enrolled")
	}
	if res.Token != nil {
		t.Fatalf("voice enrollment must not issue a credential")
	}
}

func TestVoiceIdenticalSampleAccepted(t *testing.T) {
	f := newFixture(t)
	enrollAliceVoice(t, f)

	res, err := f.svc.VerifyVoice(context.Background(), VerifyInput{Username: "alice", Sample: sampleOf("login.wav")})
	if err != nil {
		t.Fatalf("verify voice: %v", err)
	}
	if !res.Accepted || res.Token == nil {
		t.Fatalf("expected accept with token, got %+v", res)
	}
	if res.Scores.Combined == nil || *res.Scores.Combined < 0.999999 {
		t.Fatalf("expected combined score 1.0, got %v", res.Scores.Combined)
	}
	if res.Scores.Biometric == nil || *res.Scores.Biometric < 0.999999 {
		t.Fatalf("expected biometric score 1.0, got %v", res.Scores.Biometric)
	}

	got := f.attempts(t, "alice")
	if len(got) != 1 || !got[0].Success || got[0].Method != history.MethodVoice {
		t.Fatalf("expected one successful voice attempt, got %+v", got)
	}
	f.assertNoSamples(t)
}

func TestVoiceOrthogonalEmbeddingRejected(t *testing.T) {
	f := newFixture(t)
	enrollAliceVoice(t, f)

	f.extractor.voice = extractor.VoiceResult{Embedding: []float64{0, 1, 0}, Features: aliceFeatures()}
	res, err := f.svc.VerifyVoice(context.Background(), VerifyInput{Username: "alice", Sample: sampleOf("login.wav")})
	if err != nil {
		t.Fatalf("verify voice: %v", err)
	}
	if res.Accepted || res.Token != nil {
		t.Fatalf("expected reject without token, got %+v", res)
	}
	if c := *res.Scores.Combined; c < 0.0999999 || c > 0.1000001 {
		t.Fatalf("expected combined score 0.1, got %v", c)
	}

	got := f.attempts(t, "alice")
	if len(got) != 1 || got[0].Success {
		t.Fatalf("expected one failed attempt, got %+v", got)
	}
	if got[0].SimilarityScore == nil || *got[0].SimilarityScore != 0 || got[0].BiometricScore == nil {
		t.Fatalf("expected scores on the attempt, got %+v", got[0])
	}
	f.assertNoSamples(t)
}

func TestVoiceNotEnrolled(t *testing.T) {
	f := newFixture(t)
	f.extractor.face = extractor.FaceResult{Embedding: []float64{1, 0}}
	if _, err := f.svc.EnrollFace(context.Background(), EnrollInput{Username: "bob", Email: "bob@example.com", Sample: sampleOf("f.jpg")}); err != nil {
		t.Fatalf("enroll face: %v", err)
	}

	_, err := f.svc.VerifyVoice(context.Background(), VerifyInput{Username: "bob", Sample: sampleOf("login.wav")})
	if !errors.Is(err, ErrModalityNotEnrolled) {
		t.Fatalf("expected modality not enrolled, got %v", err)
	}
	if Category(err) != CodeModalityNotEnrolled {
		t.Fatalf("unexpected category %s", Category(err))
	}
	if got := f.attempts(t, "bob"); len(got) != 0 {
		t.Fatalf("expected no attempts, got %d", len(got))
	}
	if len(f.extractor.paths) != 1 {
		t.Fatalf("extractor must not be called for a lookup failure")
	}
	f.assertNoSamples(t)
}

func TestVerifyUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyFace(context.Background(), VerifyInput{Username: "ghost", Sample: sampleOf("f.jpg")})
	if !errors.Is(err, ErrUserNotFound) || Category(err) != CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.extractor.paths) != 0 {
		t.Fatalf("extractor must not be called for an unknown user")
	}
}

func TestFaceEnrollAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.extractor.face = extractor.FaceResult{Embedding: []float64{1, 0, 0, 0}}

	enrolled, err := f.svc.EnrollFace(ctx, EnrollInput{Username: "carol", Email: "Carol@Example.com", Sample: sampleOf("f.png")})
	if err != nil {
		t.Fatalf("enroll face: %v", err)
	}
	if enrolled.Token == nil || enrolled.Token.AccessToken == "" {
		t.Fatalf("face enrollment must issue a credential")
	}
	if enrolled.User.Email != "carol@example.com" {
		t.Fatalf("expected normalised email, got %s", enrolled.User.Email)
	}

	res, err := f.svc.VerifyFace(ctx, VerifyInput{Username: "carol", IPAddress: "10.0.0.1", Sample: sampleOf("f.png")})
	if err != nil {
		t.Fatalf("verify face: %v", err)
	}
	if !res.Accepted || res.Token == nil || res.Scores.Combined != nil || res.Scores.Biometric != nil {
		t.Fatalf("unexpected face result %+v", res)
	}

	// cosine([1,1,1,1], [1,0,0,0]) is exactly 0.5
	f.extractor.face = extractor.FaceResult{Embedding: []float64{1, 1, 1, 1}}
	res, err = f.svc.VerifyFace(ctx, VerifyInput{Username: "carol", Sample: sampleOf("f.png")})
	if err != nil {
		t.Fatalf("verify face: %v", err)
	}
	if res.Scores.Embedding != 0.5 {
		t.Fatalf("expected similarity 0.5, got %v", res.Scores.Embedding)
	}
	if res.Accepted || res.Token != nil {
		t.Fatalf("similarity at threshold must reject")
	}

	got := f.attempts(t, "carol")
	if len(got) != 2 {
		t.Fatalf("expected two attempts, got %d", len(got))
	}
	if got[1].IPAddress != "10.0.0.1" || got[1].BiometricScore != nil {
		t.Fatalf("unexpected first attempt %+v", got[1])
	}
	f.assertNoSamples(t)
}

func TestExtractionFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	enrollAliceVoice(t, f)
	before, _ := f.users.FindByUsername(context.Background(), "alice")

	f.extractor.err = errors.New("service unavailable")

	_, err := f.svc.VerifyVoice(context.Background(), VerifyInput{Username: "alice", Sample: sampleOf("v.wav")})
	if !errors.Is(err, ErrUpstream) || Category(err) != CodeUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	_, err = f.svc.EnrollVoice(context.Background(), EnrollInput{Username: "alice", Email: "alice@example.com", Sample: sampleOf("v.wav")})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	if got := f.attempts(t, "alice"); len(got) != 0 {
		t.Fatalf("failed extraction must not record attempts, got %d", len(got))
	}
	after, _ := f.users.FindByUsername(context.Background(), "alice")
	if after.Voice.Embedding[0] != before.Voice.Embedding[0] || !after.HasVoice() {
		t.Fatalf("failed enrollment modified the stored profile")
	}
	for i, existed := range f.extractor.existed {
		if !existed {
			t.Fatalf("sample %d did not exist while the extractor ran", i)
		}
	}
	f.assertNoSamples(t)
}

func TestIncompleteVoiceExtractionRejected(t *testing.T) {
	f := newFixture(t)
	f.extractor.voice = extractor.VoiceResult{Embedding: []float64{1, 0, 0}}

	_, err := f.svc.EnrollVoice(context.Background(), EnrollInput{Username: "dave", Email: "dave@example.com", Sample: sampleOf("v.wav")})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if _, err := f.users.FindByUsername(context.Background(), "dave"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("failed enrollment must not create a user, got %v", err)
	}
	f.assertNoSamples(t)
}

func TestExtractionTimeoutReleasesSample(t *testing.T) {
	f := newFixture(t)
	enrollAliceVoice(t, f)
	f.extractor.block = true

	start := time.Now()
	_, err := f.svc.VerifyVoice(context.Background(), VerifyInput{Username: "alice", Sample: sampleOf("v.wav")})
	if !errors.Is(err, context.DeadlineExceeded) || Category(err) != CodeUpstream {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout was not applied")
	}
	f.assertNoSamples(t)
}

func TestCallerCancellationReleasesSample(t *testing.T) {
	f := newFixture(t)
	f.extractor.block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := f.svc.EnrollFace(ctx, EnrollInput{Username: "erin", Email: "erin@example.com", Sample: sampleOf("f.jpg")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	f.assertNoSamples(t)
}

func TestEmbeddingLengthMismatch(t *testing.T) {
	f := newFixture(t)
	enrollAliceVoice(t, f)
	f.extractor.voice = extractor.VoiceResult{Embedding: []float64{1, 0}, Features: aliceFeatures()}

	_, err := f.svc.VerifyVoice(context.Background(), VerifyInput{Username: "alice", Sample: sampleOf("v.wav")})
	if !errors.Is(err, ErrEmbeddingMismatch) || Category(err) != CodeEmbeddingMismatch {
		t.Fatalf("expected embedding mismatch, got %v", err)
	}
	if got := f.attempts(t, "alice"); len(got) != 0 {
		t.Fatalf("expected no attempts, got %d", len(got))
	}
	f.assertNoSamples(t)
}

func TestInputValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []EnrollInput{
		{Username: "", Email: "a@example.com", Sample: sampleOf("f.jpg")},
		{Username: "a", Email: "not-an-email", Sample: sampleOf("f.jpg")},
		{Username: "a", Email: "a@example.com"},
		{Username: "a", Email: "a@example.com", Sample: SampleInput{Filename: "f.jpg", Data: bytes.NewReader(nil)}},
	}
	for i, in := range cases {
		if _, err := f.svc.EnrollFace(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
	if len(f.extractor.paths) != 0 {
		t.Fatalf("extractor must not be called for invalid input")
	}
	f.assertNoSamples(t)
}

func TestEnrollEmailMismatchKeepsProfile(t *testing.T) {
	f := newFixture(t)
	enrollAliceVoice(t, f)

	f.extractor.voice = extractor.VoiceResult{Embedding: []float64{0, 0, 1}, Features: aliceFeatures()}
	_, err := f.svc.EnrollVoice(context.Background(), EnrollInput{Username: "alice", Email: "eve@example.com", Sample: sampleOf("v.wav")})
	if !errors.Is(err, identity.ErrIdentityMismatch) || Category(err) != CodeIdentityMismatch {
		t.Fatalf("expected identity mismatch, got %v", err)
	}
	user, _ := f.users.FindByUsername(context.Background(), "alice")
	if user.Voice.Embedding[0] != 1 {
		t.Fatalf("stored profile was overwritten")
	}
}

func TestSampleFilesAreUnique(t *testing.T) {
	f := newFixture(t)
	enrollAliceVoice(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.VerifyVoice(context.Background(), VerifyInput{Username: "alice", Sample: sampleOf("v.wav")}); err != nil {
				t.Errorf("verify: %v", err)
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range f.extractor.paths {
		if seen[p] {
			t.Fatalf("sample path %s reused", p)
		}
		seen[p] = true
	}
	if got := f.attempts(t, "alice"); len(got) != 8 {
		t.Fatalf("expected 8 attempts, got %d", len(got))
	}
	f.assertNoSamples(t)
}
