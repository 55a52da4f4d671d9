package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_lists.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[list](buildOptions(tc)...)

			ctx := Context{
				Store: tc.Store,
				Path:  tc.Path,
			}

			result, err := decoder.Decode(ctx, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded list mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecodeLeavesPayloadUntouched(t *testing.T) {
	payload := map[string]any{
		"id":      "id1",
		"title":   "Groceries",
		"__hover": true,
	}
	decoder := NewDecoder[list](WithPreHook[list](dropEphemeralPreHook))

	if _, err := decoder.Decode(Context{Path: "id2list.id1"}, payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := payload["__hover"]; !ok {
		t.Fatalf("expected caller payload to keep its keys")
	}
}

func TestDecodeSlices(t *testing.T) {
	payload := []any{
		map[string]any{"id": "b", "title": "Bread", "order": 1},
		map[string]any{"id": "a", "title": "Milk", "order": 0},
	}
	items, err := NewDecoder[[]item]().Decode(Context{Path: "items"}, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 || items[0].ID != "b" || items[1].Order != 0 {
		t.Fatalf("unexpected items: %#v", items)
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[list] {
	options := []DecoderOption[list]{}

	for _, optName := range tc.Options {
		switch optName {
		case "use_number":
			options = append(options, WithUseNumber[list]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[list]())
		}
	}

	for _, hookName := range tc.PreHooks {
		switch hookName {
		case "drop_ephemeral":
			options = append(options, WithPreHook[list](dropEphemeralPreHook))
		}
	}

	for _, hookName := range tc.PostHooks {
		switch hookName {
		case "default_title":
			options = append(options, WithPostHook[list](defaultTitlePostHook))
		}
	}

	if tc.CustomDecoder != "" {
		switch tc.CustomDecoder {
		case "compact":
			options = append(options, WithCustomDecoder[list](compactDecoder))
		}
	}

	return options
}

func dropEphemeralPreHook(_ Context, payload any) (any, error) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map payload, got %T", payload)
	}
	for key := range m {
		if strings.HasPrefix(key, "__") {
			delete(m, key)
		}
	}
	return m, nil
}

func defaultTitlePostHook(ctx Context, value *list) error {
	if value == nil {
		return errors.New("list is nil")
	}
	if value.Title != "" {
		return nil
	}
	value.Title = fmt.Sprintf("Untitled %s", lastSegment(ctx.Path))
	return nil
}

// compactDecoder accepts "id:title" strings.
func compactDecoder(ctx Context, payload any) (list, error) {
	raw, ok := payload.(string)
	if !ok || raw == "" {
		return list{}, fmt.Errorf("missing compact list at %q", ctx.Path)
	}
	id, title, found := strings.Cut(raw, ":")
	if !found {
		return list{}, fmt.Errorf("malformed compact list %q", raw)
	}
	return list{ID: id, Title: title}, nil
}

func lastSegment(path string) string {
	parts := strings.Split(path, ".")
	return parts[len(parts)-1]
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name          string   `json:"name"`
	Store         string   `json:"store"`
	Path          string   `json:"path"`
	Input         any      `json:"input"`
	Expect        list     `json:"expect"`
	ExpectErr     string   `json:"expectErr"`
	PreHooks      []string `json:"preHooks"`
	PostHooks     []string `json:"postHooks"`
	Options       []string `json:"options"`
	CustomDecoder string   `json:"customDecoder"`
}

type list struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Items       map[string]item `json:"id2item,omitempty"`
}

type item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	path := filepath.Join("..", "..", "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
