package filterquery

import (
	"fmt"
	"strconv"
	"time"

	"quarry/internal/domain/models"
)

// ToIssueQuery converts a deserialized query mapping into the typed issue
// query. Unrecognized keys are ignored; malformed values for recognized keys
// are an error.
func ToIssueQuery(query map[string]interface{}) (*models.IssueQuery, error) {
	result := &models.IssueQuery{}

	for key, value := range query {
		var err error
		switch key {
		case "severities":
			result.Severities, err = toStrings(value)
		case "statuses":
			result.Statuses, err = toStrings(value)
		case "resolutions":
			result.Resolutions, err = toStrings(value)
		case "resolved":
			result.Resolved, err = toBoolPtr(value)
		case "componentRoots":
			result.ComponentRoots, err = toStrings(value)
		case "rules":
			result.Rules, err = toStrings(value)
		case "assignees":
			result.Assignees, err = toStrings(value)
		case "reporters":
			result.Reporters, err = toStrings(value)
		case "assigned":
			result.Assigned, err = toBoolPtr(value)
		case "createdAfter":
			result.CreatedAfter, err = toTimePtr(value)
		case "createdBefore":
			result.CreatedBefore, err = toTimePtr(value)
		case "sort":
			result.Sort, err = toString(value)
		case "asc":
			var asc *bool
			if asc, err = toBoolPtr(value); err == nil && asc != nil {
				result.Asc = *asc
			}
		case "pageIndex":
			result.PageIndex, err = toInt(value)
		case "pageSize":
			result.PageSize, err = toInt(value)
		}
		if err != nil {
			return nil, fmt.Errorf("query parameter %q: %w", key, err)
		}
	}

	return result, nil
}

func toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

func toStrings(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			s, err := toString(item)
			if err != nil {
				return nil, err
			}
			items = append(items, s)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", value)
	}
}

func toBoolPtr(value interface{}) (*bool, error) {
	switch v := value.(type) {
	case bool:
		return &v, nil
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", v)
		}
		return &parsed, nil
	default:
		return nil, fmt.Errorf("expected boolean, got %T", value)
	}
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

func toTimePtr(value interface{}) (*time.Time, error) {
	s, err := toString(value)
	if err != nil {
		return nil, err
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("expected date, got %q", s)
}
