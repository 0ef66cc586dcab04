package capsule

import "fmt"

// MockGeneratedAt is the fixed timestamp stamped on synthesized data so that
// mock output is a pure function of its inputs.
const MockGeneratedAt = "1970-01-01T00:00:00Z"

// Mock synthesizes deterministic capsule data for year. fossil selects the
// misread fossil shape used for present and future years.
func Mock(year int, fossil bool) Data {
	if fossil {
		return mockFossil(year)
	}
	return mockHistory(year)
}

func mockHistory(year int) Data {
	display := YearDisplay(year)
	return Data{
		Kind:        KindHistory,
		Year:        year,
		YearDisplay: display,
		Events: []Event{
			{
				Title:       fmt.Sprintf("A major discovery of %s", display),
				Description: "This year humanity took an important step into the unknown.",
				Category:    CategoryScience,
			},
			{
				Title:       fmt.Sprintf("Social upheaval of %s", display),
				Description: "Society changed in ways that shaped the centuries that followed.",
				Category:    CategoryPolitics,
			},
			{
				Title:       fmt.Sprintf("Cultural flowering of %s", display),
				Description: "Art and thought reached new heights in this period.",
				Category:    CategoryCulture,
			},
		},
		Symbols:     []string{"Wheel of Time", "Eternal Flame", "Eye of Wisdom", "Thread of Fate"},
		Synthesis:   fmt.Sprintf("A mysterious object holding the essence of %s, its surface carved with ancient runes.", display),
		Philosophy:  fmt.Sprintf("%s is a node in the long river of history. Here past and future meet, and the nature of time shows itself.", display),
		GeneratedAt: MockGeneratedAt,
	}
}

func mockFossil(year int) Data {
	return Data{
		Kind:        KindFossil,
		Mode:        ModeMisread,
		Year:        year,
		YearDisplay: YearDisplay(year),
		Events: []Event{
			{
				Title:       "Cooling altar unearthed",
				Description: "Many ritual platforms with fan structures were found, presumably reserved for high priests.",
				Category:    CategoryRitual,
			},
			{
				Title:       "Glowing prayer slab remains",
				Description: "A thin slab emitting blue light and engraved with mysterious symbols, likely used to commune with the gods.",
				Category:    CategoryUnknown,
			},
			{
				Title:       "Data offering vessel",
				Description: "A small metal box of great internal complexity, possibly used to store offerings to the gods.",
				Category:    CategoryTechnology,
			},
		},
		Symbols:    []string{"Cooling Altar", "Glowing Prayer Slab", "Data Offering", "Compute Totem"},
		Synthesis:  "A fossilized graphics card, its fan blades turned to stone and its surface covered in moss.",
		Philosophy: `This civilization worshipped an invisible deity called "compute" and believed endless "mining" rituals would earn its protection.`,
		ArchaeologistReport: fmt.Sprintf(`Specimen XA-%d-07: this relic is identified as a "cooling altar" reserved for high priests. `+
			`Judging by the "glowing prayer slabs" and "data offerings" found nearby, this was an important religious site. `+
			`The civilization appears to have believed that elaborate electronic rites could connect it to the deities of the "cloud".`, year),
		GeneratedAt: MockGeneratedAt,
	}
}
