package crawler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(shopID int64, phrase, name, description, url string) RawProductRecord {
	return RawProductRecord{
		ShopID:       shopID,
		SearchPhrase: phrase,
		Name:         name,
		Description:  description,
		Price:        decimal.NewFromInt(10),
		URL:          url,
	}
}

func TestSortKey(t *testing.T) {
	assert.Equal(t, "yopebalsamdociaławerbena", SortKey("Yope", "Balsam do ciała, werbena!"))
	assert.Equal(t, "żelpodprysznic", SortKey("ŻEL", "pod-prysznic"))
	assert.Equal(t, "", SortKey(" ", "+/"))
}

func TestNormalizeOrdering(t *testing.T) {
	records := []RawProductRecord{
		record(3, "yope", "yope", "mydło", "u1"),
		record(1, "yope", "yope", "balsam", "u2"),
		record(2, "balsam", "yope", "balsam", "u3"),
		record(2, "yope", "yope", "balsam", "u4"),
		record(1, "yope", "Yope", "Balsam!", "u5"),
	}

	out := Normalize(records)
	require.Len(t, out, 5)

	var urls []string
	for _, r := range out {
		urls = append(urls, r.URL)
	}
	// ties on (phrase, key, shop) keep input order
	assert.Equal(t, []string{"u3", "u2", "u5", "u4", "u1"}, urls)

	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if prev.SearchPhrase != cur.SearchPhrase {
			assert.Less(t, prev.SearchPhrase, cur.SearchPhrase)
			continue
		}
		assert.LessOrEqual(t, prev.SortKey, cur.SortKey)
		if prev.SortKey == cur.SortKey {
			assert.LessOrEqual(t, prev.ShopID, cur.ShopID)
		}
	}
}

func TestNormalizeDropsRepeatedURLs(t *testing.T) {
	records := []RawProductRecord{
		record(1, "yope", "yope", "balsam", "u1"),
		record(1, "yope", "yope", "balsam werbena", "u1"),
		record(1, "balsam", "yope", "balsam", "u1"),
	}

	out := Normalize(records)
	require.Len(t, out, 2)
	assert.Equal(t, "balsam", out[0].SearchPhrase)
	assert.Equal(t, "balsam", out[1].Description)
}

func TestNormalizeFixture(t *testing.T) {
	raw, err := NewRossmann(rossmannShop).Extract(fixtureDocument(t, "rossmann_search.html"), "yope balsam")
	require.NoError(t, err)

	out := Normalize(raw)
	require.Len(t, out, 15)
	assert.Equal(t, "balsam do ciała bambus", out[0].Description)
	assert.Equal(t, "balsam do ciała werbena", out[14].Description)
	assert.Empty(t, Normalize(nil))
}
