package biometric

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/biogate/biogate/internal/extractor"
)

func newTestApp(f *fixture) *fiber.App {
	h := NewHandler(f.svc)
	app := fiber.New()
	app.Post("/api/register", h.RegisterFace)
	app.Post("/api/login", h.LoginFace)
	app.Post("/api/voice/register", h.RegisterVoice)
	app.Post("/api/voice/login", h.LoginVoice)
	return app
}

func postMultipart(t *testing.T, app *fiber.App, path string, fields map[string]string, fileField, filename string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte("raw-sample"))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHandlerFaceRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	f.extractor.face = extractor.FaceResult{Embedding: []float64{0.2, 0.4, 0.4}}

	status, body := postMultipart(t, app, "/api/register",
		map[string]string{"username": "alice", "email": "alice@example.com"}, "image", "face.jpg")
	if status != fiber.StatusCreated {
		t.Fatalf("register: expected 201 got %d (%v)", status, body)
	}
	if body["token"] == "" || body["token"] == nil {
		t.Fatalf("expected token in register response: %v", body)
	}

	status, body = postMultipart(t, app, "/api/login", map[string]string{"username": "alice"}, "image", "face.jpg")
	if status != fiber.StatusOK {
		t.Fatalf("login: expected 200 got %d (%v)", status, body)
	}
	scores := body["scores"].(map[string]any)
	if scores["embedding"].(float64) < 0.999 {
		t.Fatalf("unexpected scores %v", scores)
	}

	f.extractor.face = extractor.FaceResult{Embedding: []float64{-0.2, -0.4, -0.4}}
	status, body = postMultipart(t, app, "/api/login", map[string]string{"username": "alice"}, "image", "face.jpg")
	if status != fiber.StatusUnauthorized {
		t.Fatalf("reject: expected 401 got %d (%v)", status, body)
	}
	if body["success"] != false || body["scores"] == nil {
		t.Fatalf("reject body should carry scores: %v", body)
	}
	f.assertNoSamples(t)
}

func TestHandlerVoiceRegisterHasNoToken(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	f.extractor.voice = extractor.VoiceResult{Embedding: []float64{1, 0, 0}, Features: aliceFeatures()}

	status, body := postMultipart(t, app, "/api/voice/register",
		map[string]string{"username": "alice", "email": "alice@example.com"}, "audio", "voice.wav")
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d (%v)", status, body)
	}
	if _, ok := body["token"]; ok {
		t.Fatalf("voice registration must not return a token: %v", body)
	}
	if body["message"] != "Voice registered successfully" {
		t.Fatalf("unexpected message %v", body["message"])
	}

	status, body = postMultipart(t, app, "/api/voice/login", map[string]string{"username": "alice"}, "audio", "voice.wav")
	if status != fiber.StatusOK {
		t.Fatalf("voice login: expected 200 got %d (%v)", status, body)
	}
	scores := body["scores"].(map[string]any)
	if _, ok := scores["combined"]; !ok {
		t.Fatalf("voice scores must include combined: %v", scores)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	f.extractor.face = extractor.FaceResult{Embedding: []float64{1, 0}}

	status, body := postMultipart(t, app, "/api/register",
		map[string]string{"username": "alice", "email": "alice@example.com"}, "", "")
	if status != fiber.StatusBadRequest || body["code"] != CodeInvalidInput {
		t.Fatalf("missing file: got %d %v", status, body)
	}

	status, body = postMultipart(t, app, "/api/login", map[string]string{"username": "ghost"}, "image", "face.jpg")
	if status != fiber.StatusNotFound || body["code"] != CodeNotFound {
		t.Fatalf("unknown user: got %d %v", status, body)
	}

	if status, _ := postMultipart(t, app, "/api/register",
		map[string]string{"username": "alice", "email": "alice@example.com"}, "image", "face.jpg"); status != fiber.StatusCreated {
		t.Fatalf("register: got %d", status)
	}

	status, body = postMultipart(t, app, "/api/voice/login", map[string]string{"username": "alice"}, "audio", "voice.wav")
	if status != fiber.StatusBadRequest || body["code"] != CodeModalityNotEnrolled {
		t.Fatalf("voice not enrolled: got %d %v", status, body)
	}

	status, body = postMultipart(t, app, "/api/register",
		map[string]string{"username": "alice", "email": "mallory@example.com"}, "image", "face.jpg")
	if status != fiber.StatusConflict || body["code"] != CodeIdentityMismatch {
		t.Fatalf("email mismatch: got %d %v", status, body)
	}

	f.extractor.err = extractor.ErrExtraction
	status, body = postMultipart(t, app, "/api/login", map[string]string{"username": "alice"}, "image", "face.jpg")
	if status != fiber.StatusBadGateway || body["code"] != CodeUpstream {
		t.Fatalf("extractor failure: got %d %v", status, body)
	}
	f.assertNoSamples(t)
}

func TestStatusForCoversEveryCode(t *testing.T) {
	cases := map[string]int{
		CodeInvalidInput:        400,
		CodeModalityNotEnrolled: 400,
		CodeNotFound:            404,
		CodeIdentityMismatch:    409,
		CodeEmbeddingMismatch:   422,
		CodeUpstream:            502,
		CodeInternal:            500,
	}
	for code, want := range cases {
		if got := statusFor(code); got != want {
			t.Fatalf("%s: expected %d got %d", code, want, got)
		}
	}
}
