package emed

import "encoding/json"

// Minimal FHIR R4 shapes needed for patient matching and intake submission.

type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

type Address struct {
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	District   string   `json:"district,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"data,omitempty"`
	Title       string `json:"title,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Patient struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	BirthDate    string         `json:"birthDate,omitempty"`
	Address      []Address      `json:"address,omitempty"`
}

type QuestionnaireResponseAnswer struct {
	ValueString     string      `json:"valueString,omitempty"`
	ValueAttachment *Attachment `json:"valueAttachment,omitempty"`
}

type QuestionnaireResponseItem struct {
	LinkID string                        `json:"linkId"`
	Text   string                        `json:"text,omitempty"`
	Answer []QuestionnaireResponseAnswer `json:"answer,omitempty"`
}

type QuestionnaireResponse struct {
	ResourceType  string                      `json:"resourceType"`
	Status        string                      `json:"status"`
	Questionnaire string                      `json:"questionnaire,omitempty"`
	Subject       Reference                   `json:"subject"`
	Authored      string                      `json:"authored,omitempty"`
	Item          []QuestionnaireResponseItem `json:"item,omitempty"`
}

type DocumentReferenceContent struct {
	Attachment Attachment `json:"attachment"`
}

type DocumentReference struct {
	ResourceType string                     `json:"resourceType"`
	Status       string                     `json:"status"`
	Subject      Reference                  `json:"subject"`
	Description  string                     `json:"description,omitempty"`
	Content      []DocumentReferenceContent `json:"content"`
}

type ServiceRequest struct {
	ResourceType string          `json:"resourceType"`
	Status       string          `json:"status"`
	Intent       string          `json:"intent"`
	Subject      Reference       `json:"subject"`
	Code         CodeableConcept `json:"code"`
	Quantity     *Quantity       `json:"quantityQuantity,omitempty"`
}

type Quantity struct {
	Value int `json:"value"`
}

type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Request  *BundleRequest  `json:"request,omitempty"`
}

type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}
