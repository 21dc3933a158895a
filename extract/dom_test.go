package extract

import (
	"fmt"
	"testing"

	"github.com/andybalholm/cascadia"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorData_Compiles(t *testing.T) {
	all := append([]string{itemSelector, headingSelector}, containerSelectors...)
	for _, r := range nameResolvers {
		all = append(all, r.Selector)
	}
	for _, r := range amountResolvers {
		if r.TextNodes {
			continue
		}
		all = append(all, r.Selector)
	}
	for _, c := range counterCandidates {
		all = append(all, c.Selector)
	}
	for _, s := range all {
		_, err := cascadia.Compile(s)
		assert.NoError(t, err, s)
	}
}

func TestScanDOM_ContributionItems(t *testing.T) {
	const page = `<html><body>
		<ul class="contributions__list">
			<li class="contribution">
				<span class="contribution__name">Alice</span>
				<span class="contribution__amount">25 €</span>
			</li>
			<li class="contribution">
				<span class="contribution__name">Bob</span>
				<span class="contribution__amount">1.234,56 €</span>
			</li>
		</ul>
	</body></html>`

	out, err := scanDOM(page)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Name: "Alice", AmountText: "25 €"},
		{Name: "Bob", AmountText: "1.234,56 €"},
	}, out.Records)
	assert.Nil(t, out.TotalCount, "no counter element on the page")
}

func TestScanDOM_CounterElement(t *testing.T) {
	const page = `<html><body>
		<section data-testid="contributions-section">
			<p><strong class="bold color--prim">1 204</strong> contributions</p>
			<ul><li class="contribution-item"><b class="donor-name">Zoé</b><i class="amount">10 €</i></li></ul>
		</section>
	</body></html>`

	out, err := scanDOM(page)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, Record{Name: "Zoé", AmountText: "10 €"}, out.Records[0])
	require.NotNil(t, out.TotalCount)
	assert.Equal(t, 1204, *out.TotalCount)
}

func TestScanDOM_DocumentCounter(t *testing.T) {
	const page = `<html><body>
		<div><span data-testid="contributions-count">42 contributions</span></div>
		<ul class="contributions"><li class="contribution"><span class="contribution__name">A</span><span class="contribution__amount">5</span></li></ul>
	</body></html>`

	out, err := scanDOM(page)
	require.NoError(t, err)
	require.NotNil(t, out.TotalCount)
	assert.Equal(t, 42, *out.TotalCount)
}

func TestScanDOM_HeadingHeuristic(t *testing.T) {
	const page = `<html><body>
		<section class="sidebar">
			<li class="contribution"><span class="contribution__name">Outside</span><span class="contribution__amount">1 €</span></li>
		</section>
		<section class="block">
			<h3>Dernières contributions</h3>
			<div>
				<li class="x"><div class="contribution__name">Inside</div><div class="contribution__amount">9 €</div></li>
			</div>
		</section>
	</body></html>`

	out, err := scanDOM(page)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Inside", out.Records[0].Name)
}

func TestScanDOM_FallbackResolvers(t *testing.T) {
	const page = `<html><body><ul class="contribution-list">
		<li class="contribution">
			<span data-testid="contributor-name">Test Id</span>
			<span data-testid="contribution-amount">12 €</span>
		</li>
		<li class="contribution">
			<span class="contributor-name">Leaf Amount</span>
			<div><em>il y a 2 jours</em></div>
		</li>
		<li class="contribution">
			<span class="contributor-name">No Amount</span>
		</li>
		<li class="contribution">
			<span class="contribution__amount">99 €</span>
		</li>
	</ul></body></html>`

	out, err := scanDOM(page)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Name: "Test Id", AmountText: "12 €"},
		{Name: "Leaf Amount", AmountText: "il y a 2 jours"},
		{Name: "No Amount", AmountText: missingAmount},
	}, out.Records, "rows without a name are dropped")
}

func TestScanDOM_BareTextAmount(t *testing.T) {
	const page = `<html><body><ul class="contributions__list">
		<li class="contribution"><span class="contribution__name">Alice</span> 25 €</li>
		<li class="contribution"><span class="contribution__name">Bob</span><div><em>x</em> 1.234,56 €</div></li>
		<li class="contribution"><span class="contribution__name">Chloé 2000</span><script>var n = 1;</script></li>
	</ul></body></html>`

	out, err := scanDOM(page)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{Name: "Alice", AmountText: "25 €"},
		{Name: "Bob", AmountText: "1.234,56 €"},
		{Name: "Chloé 2000", AmountText: missingAmount},
	}, out.Records, "name text and script content are never taken as the amount")
}

func TestScanDOM_Empty(t *testing.T) {
	out, err := scanDOM(`<html><body><p>Nothing here</p></body></html>`)
	require.NoError(t, err)
	assert.True(t, out.Empty())
	assert.Nil(t, out.TotalCount)
	assert.Zero(t, out.Layout)
}

func TestScanDOM_LayoutFingerprint(t *testing.T) {
	const tmpl = `<html><body><ul class="contributions__list">
		<li class="contribution"><span class="contribution__name">%s</span><span class="contribution__amount">%s</span></li>
	</ul></body></html>`

	a, err := scanDOM(fmt.Sprintf(tmpl, "Alice", "25 €"))
	require.NoError(t, err)
	b, err := scanDOM(fmt.Sprintf(tmpl, "Bob", "3 €"))
	require.NoError(t, err)
	assert.NotZero(t, a.Layout)
	assert.Equal(t, a.Layout, b.Layout, "same template, different content")

	c, err := scanDOM(`<html><body><ol><li class="contribution-item"><div class="card"><h3 class="donor-name">Alice</h3><p class="meta"><b class="amount">25 €</b><em>hier</em></p></div></li></ol></body></html>`)
	require.NoError(t, err)
	require.Len(t, c.Records, 1)
	assert.NotEqual(t, a.Layout, c.Layout)
}

func TestRescanDOM_IgnoresContainerAndCounter(t *testing.T) {
	const page = `<html><body>
		<span data-testid="contributions-count">300</span>
		<div class="lazy"><li class="contribution"><span class="contribution__name">Late</span><span class="contribution__amount">3 €</span></li></div>
	</body></html>`

	out, err := rescanDOM(page)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "Late", out.Records[0].Name)
	assert.Nil(t, out.TotalCount)
}

func TestParseCount(t *testing.T) {
	n, ok := parseCount("  1 234 contributions")
	require.True(t, ok)
	assert.Equal(t, 1234, n)

	_, ok = parseCount("aucune")
	assert.False(t, ok)
}
