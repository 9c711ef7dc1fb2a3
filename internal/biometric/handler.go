package biometric

import (
	"mime/multipart"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes enrollment and verification over multipart HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// RegisterFace handles POST /register with username, email and image fields.
func (h *Handler) RegisterFace(c *fiber.Ctx) error {
	in, closeFn, err := enrollInput(c, "image")
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := h.service.EnrollFace(c.UserContext(), in)
	if err != nil {
		return failure(c, err)
	}
	body := fiber.Map{
		"success": true,
		"message": res.Message,
		"user_id": res.User.ID,
	}
	if res.Token != nil {
		body["token"] = res.Token.AccessToken
		body["expires_at"] = res.Token.ExpiresAt
	}
	return c.Status(http.StatusCreated).JSON(body)
}

// RegisterVoice handles POST /voice/register with username, email and audio fields.
func (h *Handler) RegisterVoice(c *fiber.Ctx) error {
	in, closeFn, err := enrollInput(c, "audio")
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := h.service.EnrollVoice(c.UserContext(), in)
	if err != nil {
		return failure(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": res.Message,
		"user_id": res.User.ID,
	})
}

// LoginFace handles POST /login with username and image fields.
func (h *Handler) LoginFace(c *fiber.Ctx) error {
	in, closeFn, err := verifyInput(c, "image")
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := h.service.VerifyFace(c.UserContext(), in)
	if err != nil {
		return failure(c, err)
	}
	return decided(c, res, "Face not recognized")
}

// LoginVoice handles POST /voice/login with username and audio fields.
func (h *Handler) LoginVoice(c *fiber.Ctx) error {
	in, closeFn, err := verifyInput(c, "audio")
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := h.service.VerifyVoice(c.UserContext(), in)
	if err != nil {
		return failure(c, err)
	}
	return decided(c, res, "Voice not recognized")
}

func decided(c *fiber.Ctx, res VerifyResult, rejectMsg string) error {
	if !res.Accepted {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   rejectMsg,
			"scores":  res.Scores,
		})
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"token":      res.Token.AccessToken,
		"expires_at": res.Token.ExpiresAt,
		"user_id":    res.User.ID,
		"username":   res.User.Username,
		"scores":     res.Scores,
	})
}

// failure renders a service error with its category.
func failure(c *fiber.Ctx, err error) error {
	code := Category(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

func statusFor(code string) int {
	switch code {
	case CodeInvalidInput, CodeModalityNotEnrolled:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeIdentityMismatch:
		return http.StatusConflict
	case CodeEmbeddingMismatch:
		return http.StatusUnprocessableEntity
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func enrollInput(c *fiber.Ctx, field string) (EnrollInput, func(), error) {
	smp, closeFn, err := formSample(c, field)
	if err != nil {
		return EnrollInput{}, nil, err
	}
	return EnrollInput{
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Sample:   smp,
	}, closeFn, nil
}

func verifyInput(c *fiber.Ctx, field string) (VerifyInput, func(), error) {
	smp, closeFn, err := formSample(c, field)
	if err != nil {
		return VerifyInput{}, nil, err
	}
	return VerifyInput{
		Username:  c.FormValue("username"),
		IPAddress: c.IP(),
		Sample:    smp,
	}, closeFn, nil
}

// formSample opens the uploaded file. A missing or unparsable upload yields an
// empty input so the service reports it as invalid input.
func formSample(c *fiber.Ctx, field string) (SampleInput, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return SampleInput{}, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return SampleInput{}, nil, fiber.NewError(http.StatusBadRequest, "unreadable upload")
	}
	return SampleInput{Filename: fh.Filename, Data: f}, closeFile(f), nil
}

func closeFile(f multipart.File) func() {
	return func() { _ = f.Close() }
}
