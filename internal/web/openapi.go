package web

import (
	"net/http"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/a3tai/sf2809-filler/internal/mapping"
	pdferrors "github.com/a3tai/sf2809-filler/internal/pdf/errors"
)

// OpenAPI describes the fill endpoint. The request schema has one property
// per mapped field and rejects anything else.
func OpenAPI(table *mapping.Table, version string) *openapi3.T {
	noExtra := false
	values := openapi3.NewObjectSchema()
	values.AdditionalProperties = openapi3.AdditionalProperties{Has: &noExtra}
	for _, record := range table.Records() {
		values.WithProperty(record.APIName, fieldSchema(record))
	}

	kinds := []interface{}{}
	for _, et := range []pdferrors.ErrorType{
		pdferrors.ErrorTypeMalformedRequest,
		pdferrors.ErrorTypeUnknownField,
		pdferrors.ErrorTypeFillInvocationFailed,
		pdferrors.ErrorTypeFillTimeout,
		pdferrors.ErrorTypeDuplicateMapping,
		pdferrors.ErrorTypeTemplateReadFailed,
		pdferrors.ErrorTypeUnknown,
	} {
		kinds = append(kinds, et.String())
	}
	errorSchema := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("kind", openapi3.NewStringSchema().WithEnum(kinds...))
	errorSchema.Required = []string{"error", "kind"}

	errorResponse := func(description string) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription(description).
			WithJSONSchema(errorSchema)}
	}

	fill := &openapi3.Operation{
		OperationID: "fillSF2809",
		Summary:     "Fill the SF2809 form",
		Description: "Fills the template with the given values and returns the document. " +
			"Keys are api names as listed by GET /sf2809/fields.",
		RequestBody: &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchema(values)},
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
				WithDescription("The filled document").
				WithContent(openapi3.NewContentWithSchema(
					openapi3.NewStringSchema().WithFormat("binary"), []string{"application/pdf"}))}),
			openapi3.WithStatus(http.StatusBadRequest, errorResponse("The body is not a JSON object of field values")),
			openapi3.WithStatus(http.StatusRequestEntityTooLarge, errorResponse("The body is too large")),
			openapi3.WithStatus(http.StatusUnprocessableEntity, errorResponse("A key is not a known field")),
			openapi3.WithStatus(http.StatusBadGateway, errorResponse("The fill tool failed")),
			openapi3.WithStatus(http.StatusGatewayTimeout, errorResponse("The fill tool timed out")),
		),
	}

	fieldItem := openapi3.NewObjectSchema().
		WithProperty("api_name", openapi3.NewStringSchema()).
		WithProperty("type", openapi3.NewStringSchema()).
		WithProperty("alt_text", openapi3.NewStringSchema()).
		WithProperty("options", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	fields := &openapi3.Operation{
		OperationID: "listSF2809Fields",
		Summary:     "List the fillable fields",
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{Value: openapi3.NewResponse().
				WithDescription("Mapped fields in template order").
				WithJSONSchema(openapi3.NewArraySchema().WithItems(fieldItem))}),
		),
	}

	return &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "SF2809 filler",
			Description: "Fills the SF2809 health benefits election form (" + strconv.Itoa(table.Len()) + " fields).",
			Version:     version,
		},
		Paths: openapi3.NewPaths(
			openapi3.WithPath("/sf2809", &openapi3.PathItem{Post: fill}),
			openapi3.WithPath("/sf2809/fields", &openapi3.PathItem{Get: fields}),
		),
	}
}

// fieldSchema accepts a string, a number or, for fields with options, one of
// the options or a list of them
func fieldSchema(record mapping.Record) *openapi3.Schema {
	if len(record.Options) == 0 {
		s := openapi3.NewOneOfSchema(openapi3.NewStringSchema(), openapi3.NewFloat64Schema())
		s.Description = record.AltText
		return s
	}

	enum := make([]interface{}, len(record.Options))
	for i, option := range record.Options {
		enum[i] = option
	}
	single := openapi3.NewStringSchema().WithEnum(enum...)
	s := openapi3.NewOneOfSchema(single, openapi3.NewArraySchema().WithItems(single))
	s.Description = record.AltText
	return s
}
