package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stackvity/activity-logger/pkg/converter/activity"
)

// JSONDateLayout is the layout of signedInTime in JSON input.
const JSONDateLayout = "01/02/2006"

// JSONHandler reads `{"activity":{...}}` documents.
type JSONHandler struct {
	schema *gojsonschema.Schema
	mapper *activity.Mapper
}

type jsonEnvelope struct {
	Activity *jsonActivity `json:"activity"`
}

type jsonActivity struct {
	UserName                string `json:"userName"`
	WebsiteName             string `json:"websiteName"`
	ActivityTypeDescription string `json:"activityTypeDescription"`
	ActivityTypeCode        *int   `json:"activityTypeCode"`
	SignedInTime            string `json:"signedInTime"`
	NumberOfViews           int    `json:"number_of_views"`
}

// NewJSONHandler loads deps.JSONSchemaPath if set. Without one, Validate
// always passes and structural errors surface from Transform.
func NewJSONHandler(deps Dependencies) (Handler, error) {
	h := &JSONHandler{mapper: deps.Mapper}
	if h.mapper == nil {
		h.mapper = activity.NewMapper(nil)
	}
	if deps.JSONSchemaPath == "" {
		return h, nil
	}
	abs, err := filepath.Abs(deps.JSONSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("json handler: resolve schema path: %w", err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs)))
	if err != nil {
		return nil, fmt.Errorf("json handler: load schema %q: %w", deps.JSONSchemaPath, err)
	}
	h.schema = s
	if deps.Logger != nil {
		deps.Logger.Debug("JSON schema loaded", slog.String("path", deps.JSONSchemaPath))
	}
	return h, nil
}

// Validate checks content against the JSON schema, if any.
func (h *JSONHandler) Validate(content string) (bool, error) {
	if h.schema == nil {
		return true, nil
	}
	result, err := h.schema.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return false, err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return false, fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return true, nil
}

// Transform parses content and formats it as an output line.
func (h *JSONHandler) Transform(content string) (string, error) {
	var env jsonEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return "", fmt.Errorf("malformed json: %w", err)
	}
	if env.Activity == nil {
		return "", fmt.Errorf("%w: activity", activity.ErrMissingField)
	}
	raw := env.Activity

	a := activity.Activity{
		User:        strings.TrimSpace(raw.UserName),
		Website:     strings.TrimSpace(raw.WebsiteName),
		Description: strings.TrimSpace(raw.ActivityTypeDescription),
		Views:       raw.NumberOfViews,
	}
	if raw.ActivityTypeCode != nil {
		a.Code, a.HasCode = *raw.ActivityTypeCode, true
	}
	if v := strings.TrimSpace(raw.SignedInTime); v != "" {
		ts, err := time.Parse(JSONDateLayout, v)
		if err != nil {
			return "", fmt.Errorf("invalid signedInTime %q: %w", v, err)
		}
		a.SignedIn = ts
	}
	return h.mapper.Format(a)
}
