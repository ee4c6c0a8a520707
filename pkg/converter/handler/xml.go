package handler

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/stackvity/activity-logger/pkg/converter/activity"
	"github.com/stackvity/activity-logger/pkg/converter/schema"
)

// XMLDateLayout is the layout of loggedInTime in XML input.
const XMLDateLayout = "2006-01-02"

// XMLHandler reads `<activity>` documents. When a schema is configured each
// Validate call runs against its own validator.
type XMLHandler struct {
	schema *schema.Schema
	mapper *activity.Mapper
}

type xmlActivity struct {
	XMLName                 xml.Name `xml:"activity"`
	UserName                string   `xml:"userName"`
	WebsiteName             string   `xml:"websiteName"`
	ActivityTypeDescription string   `xml:"activityTypeDescription"`
	ActivityTypeCode        string   `xml:"activityTypeCode"`
	LoggedInTime            string   `xml:"loggedInTime"`
	NumberOfViews           string   `xml:"number_of_views"`
}

// NewXMLHandler compiles deps.XMLSchemaPath if set.
func NewXMLHandler(deps Dependencies) (Handler, error) {
	h := &XMLHandler{mapper: deps.Mapper}
	if h.mapper == nil {
		h.mapper = activity.NewMapper(nil)
	}
	if deps.XMLSchemaPath == "" {
		if deps.Logger != nil {
			deps.Logger.Warn("No XML schema configured, XML content will not be schema-validated")
		}
		return h, nil
	}
	s, err := schema.CompileFile(deps.XMLSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("xml handler: %w", err)
	}
	h.schema = s
	if deps.Logger != nil {
		deps.Logger.Debug("XML schema compiled", slog.String("path", deps.XMLSchemaPath))
	}
	return h, nil
}

// Validate checks content against the schema. Without a schema it passes.
func (h *XMLHandler) Validate(content string) (bool, error) {
	if h.schema == nil {
		return true, nil
	}
	if err := h.schema.NewValidator().Validate(strings.NewReader(content)); err != nil {
		return false, err
	}
	return true, nil
}

// Transform parses content and formats it as an output line.
func (h *XMLHandler) Transform(content string) (string, error) {
	var raw xmlActivity
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&raw); err != nil {
		return "", fmt.Errorf("malformed xml: %w", err)
	}

	a := activity.Activity{
		User:        strings.TrimSpace(raw.UserName),
		Website:     strings.TrimSpace(raw.WebsiteName),
		Description: strings.TrimSpace(raw.ActivityTypeDescription),
	}
	if v := strings.TrimSpace(raw.ActivityTypeCode); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("invalid activityTypeCode %q: %w", v, err)
		}
		a.Code, a.HasCode = code, true
	}
	if v := strings.TrimSpace(raw.NumberOfViews); v != "" {
		views, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("invalid number_of_views %q: %w", v, err)
		}
		a.Views = views
	}
	if v := strings.TrimSpace(raw.LoggedInTime); v != "" {
		ts, err := time.Parse(XMLDateLayout, v)
		if err != nil {
			return "", fmt.Errorf("invalid loggedInTime %q: %w", v, err)
		}
		a.SignedIn = ts
	}
	return h.mapper.Format(a)
}
