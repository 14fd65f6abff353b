package domain

import "testing"

func TestInstanceClone(t *testing.T) {
	original := Instance{
		"code":         "015",
		"sub_agencies": []string{"015:1544"},
		"address":      map[string]any{"city": "Denver"},
	}
	clone := original.Clone()

	clone["code"] = "069"
	clone["sub_agencies"] = append(clone["sub_agencies"].([]string), "015:4740")
	clone["address"].(map[string]any)["city"] = "Boston"

	if original["code"] != "015" {
		t.Fatalf("scalar leaked: %v", original["code"])
	}
	if keys := original["sub_agencies"].([]string); len(keys) != 1 {
		t.Fatalf("collection leaked: %v", keys)
	}
	if city := original["address"].(map[string]any)["city"]; city != "Denver" {
		t.Fatalf("object leaked: %v", city)
	}
}

func TestInstanceCloneIsolatesNestedObjects(t *testing.T) {
	original := Instance{
		"place_of_performance": map[string]any{
			"address": map[string]any{"city": "Denver", "zip": map[string]any{"zip5": "80202"}},
		},
	}
	clone := original.Clone()

	address := original["place_of_performance"].(map[string]any)["address"].(map[string]any)
	address["city"] = "Boston"
	address["zip"].(map[string]any)["zip5"] = "02101"

	cloned := clone["place_of_performance"].(map[string]any)["address"].(map[string]any)
	if cloned["city"] != "Denver" {
		t.Fatalf("second-level object leaked: %v", cloned["city"])
	}
	if zip5 := cloned["zip"].(map[string]any)["zip5"]; zip5 != "80202" {
		t.Fatalf("third-level object leaked: %v", zip5)
	}
}

func TestInstanceCloneNil(t *testing.T) {
	var in Instance
	if out := in.Clone(); out != nil {
		t.Fatalf("clone of nil = %v", out)
	}
}

func TestConfigErrorMessage(t *testing.T) {
	cases := []struct {
		err  ConfigError
		want string
	}{
		{ConfigError{Entity: EntityAgency, Field: "code", Reason: "bad"}, "config: entity agency field code: bad"},
		{ConfigError{Entity: EntityAgency, Reason: "bad"}, "config: entity agency: bad"},
		{ConfigError{Reason: "bad"}, "config: bad"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Fatalf("got %q want %q", got, c.want)
		}
	}
}

func TestFieldResolutionErrorMessage(t *testing.T) {
	err := FieldResolutionError{Entity: EntityRecipient, Field: "name", Column: "recipient_name"}
	want := `resolve recipient.name: column "recipient_name" not in record schema`
	if err.Error() != want {
		t.Fatalf("got %q", err.Error())
	}
}
