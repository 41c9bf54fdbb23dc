package emed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalcart/storefront-backend/pkg/config"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/types"
)

const testNICSystem = "https://fhir.health.gov.lk/identifier/nic"

type fakeFHIR struct {
	mu       sync.Mutex
	patients []Patient
	creates  int
	bundles  []Bundle
}

func (f *fakeFHIR) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth2/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
			return
		case r.Header.Get("Authorization") != "Bearer tok":
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/fhir/Patient":
			bundle := Bundle{ResourceType: "Bundle", Type: "searchset"}
			for _, p := range f.patients {
				if matches(p, r) {
					raw, _ := json.Marshal(p)
					bundle.Entry = append(bundle.Entry, BundleEntry{Resource: raw})
				}
			}
			_ = json.NewEncoder(w).Encode(bundle)
		case r.Method == http.MethodPost && r.URL.Path == "/fhir/Patient":
			var p Patient
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			f.creates++
			p.ID = "pat-" + string(rune('0'+f.creates))
			f.patients = append(f.patients, p)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(p)
		case r.Method == http.MethodPost && r.URL.Path == "/fhir":
			var b Bundle
			require.NoError(t, json.NewDecoder(r.Body).Decode(&b))
			f.bundles = append(f.bundles, b)
			_ = json.NewEncoder(w).Encode(Bundle{ResourceType: "Bundle", Type: "transaction-response"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func matches(p Patient, r *http.Request) bool {
	if ident := r.URL.Query().Get("identifier"); ident != "" {
		for _, id := range p.Identifier {
			if id.System+"|"+id.Value == ident {
				return true
			}
		}
		return false
	}
	if email := r.URL.Query().Get("email"); email != "" {
		for _, tc := range p.Telecom {
			if tc.System == emailSystem && strings.EqualFold(tc.Value, email) {
				return true
			}
		}
	}
	return false
}

func newTestClient(t *testing.T, fake *fakeFHIR) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), config.EMedConfig{
		BaseURL:        srv.URL + "/fhir",
		TokenURL:       srv.URL + "/oauth2/token",
		ClientID:       "client",
		ClientSecret:   "secret",
		NICSystem:      testNICSystem,
		StorefrontName: "storefront",
		Timeout:        5 * time.Second,
	}, logger.New(logger.Options{ServiceName: "emed-test", Output: io.Discard}))
	require.NoError(t, err)
	return c
}

func TestFindOrCreatePatientIsStableUnderRetry(t *testing.T) {
	fake := &fakeFHIR{}
	c := newTestClient(t, fake)
	dob := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	demo := Demographics{
		FirstName:   "Nimal",
		LastName:    "Perera",
		DateOfBirth: &dob,
		Sex:         "male",
		Address:     types.Address{Line1: "12 Galle Rd", City: "Colombo"},
	}

	first, err := c.FindOrCreatePatient(context.Background(), demo, "199012345678", "nimal@example.com")
	require.NoError(t, err)
	assert.True(t, first.IsNewPatient)

	second, err := c.FindOrCreatePatient(context.Background(), demo, "199012345678", "nimal@example.com")
	require.NoError(t, err)
	assert.False(t, second.IsNewPatient)
	assert.Equal(t, first.PatientID, second.PatientID)
	assert.Equal(t, 1, fake.creates)

	created := fake.patients[0]
	assert.Equal(t, "1990-04-02", created.BirthDate)
	assert.Equal(t, "male", created.Gender)
	require.Len(t, created.Address, 1)
	assert.Equal(t, []string{"12 Galle Rd"}, created.Address[0].Line)
}

func TestFindOrCreatePatientFallsBackToEmail(t *testing.T) {
	fake := &fakeFHIR{patients: []Patient{{
		ResourceType: "Patient",
		ID:           "pat-existing",
		Telecom:      []ContactPoint{{System: emailSystem, Value: "kamala@example.com"}},
	}}}
	c := newTestClient(t, fake)

	res, err := c.FindOrCreatePatient(context.Background(), Demographics{}, "", "kamala@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pat-existing", res.PatientID)
	assert.False(t, res.IsNewPatient)
	assert.Zero(t, fake.creates)
}

func TestFindOrCreatePatientRequiresMatchKey(t *testing.T) {
	c := newTestClient(t, &fakeFHIR{})
	_, err := c.FindOrCreatePatient(context.Background(), Demographics{}, " ", "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSubmitQuestionnaireAndCartPostsOneBundle(t *testing.T) {
	fake := &fakeFHIR{}
	c := newTestClient(t, fake)

	err := c.SubmitQuestionnaireAndCart(context.Background(), "pat-1",
		[]Photo{{QuestionCode: "scalp_photo", FileName: "scalp.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
		Submission{
			QuestionnaireID: "q-hair",
			Answers:         []Answer{{QuestionCode: "age_range", Value: "25-34"}},
			Questions:       []Question{{Code: "age_range", Text: "How old are you?"}},
		},
		[]CartItem{{ProductID: "finasteride-1mg", Name: "Finasteride", Quantity: 1, PrescriptionRequired: true}},
	)
	require.NoError(t, err)
	require.Len(t, fake.bundles, 1)

	bundle := fake.bundles[0]
	assert.Equal(t, "transaction", bundle.Type)
	require.Len(t, bundle.Entry, 3)
	assert.Equal(t, "QuestionnaireResponse", bundle.Entry[0].Request.URL)
	assert.Equal(t, "DocumentReference", bundle.Entry[1].Request.URL)
	assert.Equal(t, "ServiceRequest", bundle.Entry[2].Request.URL)

	var qr QuestionnaireResponse
	require.NoError(t, json.Unmarshal(bundle.Entry[0].Resource, &qr))
	require.Len(t, qr.Item, 1)
	assert.Equal(t, "How old are you?", qr.Item[0].Text)
	assert.Equal(t, "Patient/pat-1", qr.Subject.Reference)
}

func TestMapErrorCodes(t *testing.T) {
	c := &Client{}
	assert.True(t, pkgerrors.HasCode(c.mapError(&apiError{StatusCode: http.StatusUnauthorized}, "x"), pkgerrors.CodeUnauthorized))
	assert.True(t, pkgerrors.HasCode(c.mapError(&apiError{StatusCode: http.StatusBadRequest}, "x"), pkgerrors.CodeValidation))
	assert.True(t, pkgerrors.HasCode(c.mapError(&apiError{StatusCode: http.StatusBadGateway}, "x"), pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.HasCode(c.mapError(context.Canceled, "x"), pkgerrors.CodeCancelled))
}
