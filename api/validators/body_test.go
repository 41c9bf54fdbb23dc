package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","password":""}`))
	var body loginBody
	err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
	if err == nil {
		t.Fatal("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["email"] != "must be a valid email" || details["password"] != "is required" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","password":"x","extra":1}`))
	var body loginBody
	if err := DecodeJSONBody(httptest.NewRecorder(), req, &body); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestDecodeJSONToleratesUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","confirmPassword":"x"}`))
	var body loginBody
	if err := DecodeJSON(httptest.NewRecorder(), req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Email != "a@b.co" {
		t.Fatalf("unexpected email %q", body.Email)
	}
}

type paymentBody struct {
	Method  string `json:"method" validate:"required,oneof=card saved_card"`
	Address struct {
		City string `json:"city" validate:"required"`
	} `json:"address"`
}

func TestDecodeJSONBodyReportsNestedPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"method":"cash","address":{}}`))
	var body paymentBody
	err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["address.city"] != "is required" {
		t.Fatalf("expected nested path, got %v", details)
	}
	if details["method"] != "must be one of: card, saved_card" {
		t.Fatalf("unexpected oneof message %q", details["method"])
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"syntax":   `{"email":`,
		"trailing": `{"email":"a@b.co","password":"x"} {"again":true}`,
		"type":     `{"email":42,"password":"x"}`,
		"oversize": `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
	}
	for name, payload := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		var body loginBody
		err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestDecodeJSONBodyNamesWrongType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":42,"password":"x"}`))
	var body loginBody
	err := DecodeJSONBody(httptest.NewRecorder(), req, &body)
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["email"] != "must be a string" {
		t.Fatalf("unexpected details %v", details)
	}
}
