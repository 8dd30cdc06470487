package agents

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"site-assistant/internal/domain"
)

var testDefaults = Defaults{
	Classifier: domain.ModelSettings{Model: "gpt-4o-mini-classify", Temperature: 0.7, MaxTokens: 1024},
	Agent:      domain.ModelSettings{Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 1024},
}

const minimalProfiles = `
classifier:
  instructions: Pick one.
  model: gpt-classify
agents:
  - {category: GENERAL_SERVICES, instructions: general}
  - {category: CX_MODERNIZATION, instructions: cx}
  - {category: INNOVATIVE_IT, instructions: it}
  - {category: APPLIED_AI, instructions: ai, links: ["https://example.com/ai/"], temperature: 0}
  - {category: CONTENT, instructions: content}
  - {category: SUPPORT, instructions: support}
  - {category: SALES, instructions: sales, max_tokens: 256}
fallback:
  instructions: fallback
  links: ["https://example.com/contact/"]
`

func TestDefault_IsTotalOverCategories(t *testing.T) {
	table, err := Default(testDefaults)
	require.NoError(t, err)

	for _, c := range domain.Categories() {
		p, ok := table.Lookup(c)
		require.True(t, ok, "category %s", c)
		require.Equal(t, c, p.Category)
		require.NotEmpty(t, p.Instructions)
		require.NotEmpty(t, p.Links)
		require.Equal(t, "gpt-4o-mini", p.Settings.Model)
	}
	require.NotEmpty(t, table.Classifier().Instructions)
	require.Equal(t, "gpt-4o-mini-classify", table.Classifier().Settings.Model)
	require.Zero(t, table.Classifier().Settings.Temperature)
	require.Equal(t, 20, table.Classifier().Settings.MaxTokens)
	require.Len(t, table.Profiles(), len(domain.Categories()))
}

func TestLookup_UnknownCategoryFallsBack(t *testing.T) {
	table, err := Default(testDefaults)
	require.NoError(t, err)

	p, ok := table.Lookup(domain.Category("WEATHER"))
	require.False(t, ok)
	require.Equal(t, domain.FallbackCategory, p.Category)
	require.Contains(t, p.Links, "https://waterfieldtech.com/contact/")
	require.Equal(t, table.Fallback(), p)
}

func TestLoad_AppliesOverrides(t *testing.T) {
	table, err := Load([]byte(minimalProfiles), testDefaults)
	require.NoError(t, err)

	require.Equal(t, "gpt-classify", table.Classifier().Settings.Model)

	ai, _ := table.Lookup(domain.CategoryAppliedAI)
	require.Zero(t, ai.Settings.Temperature)
	require.Equal(t, 1024, ai.Settings.MaxTokens)
	require.Equal(t, "APPLIED_AI", ai.Name)

	sales, _ := table.Lookup(domain.CategorySales)
	require.Equal(t, 256, sales.Settings.MaxTokens)
	require.Equal(t, float32(0.7), sales.Settings.Temperature)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		msg  string
	}{
		{
			name: "missing category",
			doc:  strings.Replace(minimalProfiles, "  - {category: SALES, instructions: sales, max_tokens: 256}\n", "", 1),
			msg:  "missing profile for SALES",
		},
		{
			name: "duplicate category",
			doc:  strings.Replace(minimalProfiles, "category: CONTENT", "category: SUPPORT", 1),
			msg:  "duplicate profile",
		},
		{
			name: "unknown category",
			doc:  strings.Replace(minimalProfiles, "category: CONTENT", "category: WEATHER", 1),
			msg:  "unknown category",
		},
		{
			name: "fallback is not a category",
			doc:  strings.Replace(minimalProfiles, "category: CONTENT", "category: FALLBACK", 1),
			msg:  "unknown category",
		},
		{
			name: "empty instructions",
			doc:  strings.Replace(minimalProfiles, "instructions: support", "instructions: ''", 1),
			msg:  "instructions must not be empty",
		},
		{
			name: "relative link",
			doc:  strings.Replace(minimalProfiles, "https://example.com/ai/", "/ai/", 1),
			msg:  "invalid link",
		},
		{
			name: "missing fallback",
			doc:  minimalProfiles[:strings.Index(minimalProfiles, "fallback:")],
			msg:  "fallback profile is required",
		},
		{
			name: "missing classifier",
			doc:  strings.Replace(minimalProfiles, "instructions: Pick one.", "instructions: ''", 1),
			msg:  "classifier instructions",
		},
		{
			name: "not yaml",
			doc:  "agents: [",
			msg:  "decode profiles",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.doc), testDefaults)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalProfiles), 0o600))

	table, err := LoadFile(path, testDefaults)
	require.NoError(t, err)
	p, _ := table.Lookup(domain.CategoryContent)
	require.Equal(t, "content", p.Instructions)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), testDefaults)
	require.Error(t, err)

	table, err = LoadFile("", testDefaults)
	require.NoError(t, err)
	require.NotEmpty(t, table.Classifier().Instructions)
}

func TestTable_Categories(t *testing.T) {
	table, err := Default(testDefaults)
	require.NoError(t, err)
	require.Equal(t, domain.Categories(), table.Categories())

	profiles := table.Profiles()
	for i, c := range table.Categories() {
		require.Equal(t, c, profiles[i].Category)
	}
}

func TestTable_ReturnedProfilesDoNotAliasTable(t *testing.T) {
	table, err := Default(testDefaults)
	require.NoError(t, err)

	sales, ok := table.Lookup(domain.CategorySales)
	require.True(t, ok)
	want := sales.Links[0]
	sales.Links[0] = "https://evil.example.com/"

	again, _ := table.Lookup(domain.CategorySales)
	require.Equal(t, want, again.Links[0])

	profiles := table.Profiles()
	profiles[0].Links[0] = "https://evil.example.com/"
	require.NotEqual(t, "https://evil.example.com/", table.Profiles()[0].Links[0])

	fallback := table.Fallback()
	fallback.Links[0] = "https://evil.example.com/"
	require.NotEqual(t, "https://evil.example.com/", table.Fallback().Links[0])
}
