package emed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitalcart/storefront-backend/pkg/config"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	fhirContentType = "application/fhir+json"
	emailSystem     = "email"
	maxErrorBody    = 4096
)

var (
	errBaseURLRequired     = errors.New("emed base url is required")
	errCredentialsRequired = errors.New("emed client credentials are required")
	errLoggerRequired      = errors.New("emed logger is required")
)

// Client talks to the clinical system's FHIR R4 API using client credential tokens.
type Client struct {
	httpClient *http.Client
	baseURL    string
	nicSystem  string
	source     string
	logger     *logger.Logger
}

func NewClient(ctx context.Context, cfg config.EMedConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" || strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errCredentialsRequired
	}

	oauthCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	httpClient := oauthCfg.Client(tokenCtx)
	httpClient.Timeout = cfg.Timeout

	c := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		nicSystem:  cfg.NICSystem,
		source:     cfg.StorefrontName,
		logger:     logg,
	}
	logg.Info(ctx, "emed client initialized")
	return c, nil
}

// FindOrCreatePatient matches by NIC identifier, then by email, and creates the patient when neither matches.
func (c *Client) FindOrCreatePatient(ctx context.Context, demo Demographics, nic, email string) (PatientResult, error) {
	nic = strings.TrimSpace(nic)
	email = strings.TrimSpace(email)

	var query url.Values
	switch {
	case nic != "":
		query = url.Values{"identifier": []string{c.nicSystem + "|" + nic}}
	case email != "":
		query = url.Values{"email": []string{email}}
	default:
		return PatientResult{}, pkgerrors.New(pkgerrors.CodeValidation, "nic or email required to match patient")
	}

	existing, err := c.searchPatient(ctx, query)
	if err != nil {
		return PatientResult{}, c.mapError(err, "search patient")
	}
	if existing != "" {
		c.logger.Info(c.logger.WithField(ctx, "patient_id", existing), "emed patient matched")
		return PatientResult{PatientID: existing}, nil
	}

	patient := c.buildPatient(demo, nic, email)
	var created Patient
	if err := c.do(ctx, http.MethodPost, "/Patient", patient, &created); err != nil {
		return PatientResult{}, c.mapError(err, "create patient")
	}
	if created.ID == "" {
		return PatientResult{}, pkgerrors.New(pkgerrors.CodeDependency, "emed create patient returned no id")
	}
	c.logger.Info(c.logger.WithField(ctx, "patient_id", created.ID), "emed patient created")
	return PatientResult{PatientID: created.ID, IsNewPatient: true}, nil
}

// SubmitQuestionnaireAndCart posts photos, answers and cart lines as a single transaction bundle.
func (c *Client) SubmitQuestionnaireAndCart(ctx context.Context, patientID string, photos []Photo, submission Submission, cart []CartItem) error {
	if strings.TrimSpace(patientID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "patient id required")
	}
	bundle, err := c.buildSubmissionBundle(patientID, photos, submission, cart, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build submission bundle")
	}
	ctx = c.logger.WithFields(ctx, map[string]any{
		"patient_id": patientID,
		"photos":     len(photos),
		"answers":    len(submission.Answers),
		"cart_items": len(cart),
	})
	if err := c.do(ctx, http.MethodPost, "", bundle, nil); err != nil {
		return c.mapError(err, "submit questionnaire")
	}
	c.logger.Info(ctx, "emed questionnaire submitted")
	return nil
}

func (c *Client) searchPatient(ctx context.Context, query url.Values) (string, error) {
	var bundle Bundle
	if err := c.do(ctx, http.MethodGet, "/Patient?"+query.Encode(), nil, &bundle); err != nil {
		return "", err
	}
	for _, entry := range bundle.Entry {
		var p Patient
		if err := json.Unmarshal(entry.Resource, &p); err != nil {
			continue
		}
		if p.ID != "" {
			return p.ID, nil
		}
	}
	return "", nil
}

func (c *Client) buildPatient(demo Demographics, nic, email string) Patient {
	p := Patient{
		ResourceType: "Patient",
		Name: []HumanName{{
			Use:    "official",
			Family: demo.LastName,
			Given:  nonEmpty(demo.FirstName),
		}},
		Gender: fhirGender(demo.Sex),
	}
	if nic != "" {
		p.Identifier = append(p.Identifier, Identifier{System: c.nicSystem, Value: nic})
	}
	if email == "" {
		email = demo.Email
	}
	if email != "" {
		p.Telecom = append(p.Telecom, ContactPoint{System: emailSystem, Value: email})
	}
	if demo.Phone != "" {
		p.Telecom = append(p.Telecom, ContactPoint{System: "phone", Value: demo.Phone, Use: "mobile"})
	}
	if demo.DateOfBirth != nil {
		p.BirthDate = demo.DateOfBirth.Format("2006-01-02")
	}
	if !demo.Address.IsZero() {
		p.Address = []Address{{
			Line:       demo.Address.Lines(),
			City:       demo.Address.City,
			District:   demo.Address.District,
			PostalCode: demo.Address.PostalCode,
			Country:    demo.Address.Country,
		}}
	}
	return p
}

func (c *Client) buildSubmissionBundle(patientID string, photos []Photo, submission Submission, cart []CartItem, now time.Time) (Bundle, error) {
	subject := Reference{Reference: "Patient/" + patientID}
	bundle := Bundle{ResourceType: "Bundle", Type: "transaction"}

	questionText := make(map[string]string, len(submission.Questions))
	for _, q := range submission.Questions {
		questionText[q.Code] = q.Text
	}

	response := QuestionnaireResponse{
		ResourceType: "QuestionnaireResponse",
		Status:       "completed",
		Subject:      subject,
		Authored:     now.Format(time.RFC3339),
	}
	if submission.QuestionnaireID != "" {
		response.Questionnaire = "Questionnaire/" + submission.QuestionnaireID
	}
	for _, a := range submission.Answers {
		response.Item = append(response.Item, QuestionnaireResponseItem{
			LinkID: a.QuestionCode,
			Text:   questionText[a.QuestionCode],
			Answer: []QuestionnaireResponseAnswer{{ValueString: a.Value}},
		})
	}
	if err := appendEntry(&bundle, "QuestionnaireResponse", response); err != nil {
		return Bundle{}, err
	}

	for _, photo := range photos {
		doc := DocumentReference{
			ResourceType: "DocumentReference",
			Status:       "current",
			Subject:      subject,
			Description:  photo.QuestionCode,
			Content: []DocumentReferenceContent{{Attachment: Attachment{
				ContentType: photo.ContentType,
				Data:        photo.Data,
				Title:       photo.FileName,
			}}},
		}
		if err := appendEntry(&bundle, "DocumentReference", doc); err != nil {
			return Bundle{}, err
		}
	}

	for _, item := range cart {
		req := ServiceRequest{
			ResourceType: "ServiceRequest",
			Status:       "active",
			Intent:       "proposal",
			Subject:      subject,
			Code: CodeableConcept{
				Coding: []Coding{{System: c.source, Code: item.ProductID, Display: item.Name}},
				Text:   item.Name,
			},
		}
		if item.Quantity > 0 {
			req.Quantity = &Quantity{Value: item.Quantity}
		}
		if err := appendEntry(&bundle, "ServiceRequest", req); err != nil {
			return Bundle{}, err
		}
	}
	return bundle, nil
}

func appendEntry(bundle *Bundle, resourceType string, resource any) error {
	raw, err := json.Marshal(resource)
	if err != nil {
		return err
	}
	bundle.Entry = append(bundle.Entry, BundleEntry{
		Resource: raw,
		Request:  &BundleRequest{Method: http.MethodPost, URL: resourceType},
	})
	return nil
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("emed returned status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", fhirContentType)
	if body != nil {
		req.Header.Set("Content-Type", fhirContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode emed response: %w", err)
	}
	return nil
}

func (c *Client) mapError(err error, op string) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		code := pkgerrors.CodeDependency
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			code = pkgerrors.CodeUnauthorized
		case apiErr.StatusCode == http.StatusConflict:
			code = pkgerrors.CodeConflict
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("emed %s failed", op))
	}
	if errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeCancelled, err, fmt.Sprintf("emed %s cancelled", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("emed %s failed", op))
}

func fhirGender(sex string) string {
	switch strings.ToLower(strings.TrimSpace(sex)) {
	case "male":
		return "male"
	case "female":
		return "female"
	case "other":
		return "other"
	default:
		return "unknown"
	}
}

func nonEmpty(values ...string) []string {
	out := []string{}
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
