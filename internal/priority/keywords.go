package priority

// PrimaryKeywords is the built-in ranked list, most valuable first.
var PrimaryKeywords = []string{
	"gaming business",
	"game industry",
	"games industry",
	"video game industry",
	"industry report",
	"market report",
	"market analysis",
	"market forecast",
	"market share",
	"growth forecast",
	"studio acquisition",
	"publisher acquisition",
	"strategic partnership",
	"publishing deal",
	"licensing agreement",
	"distribution deal",
	"venture capital",
	"funding round",
	"seed round",
	"series a",
	"series b",
	"private equity",
	"initial public offering",
	"esports business",
	"esports industry",
	"esports organization",
	"esports organisations",
	"esports team",
	"franchise league",
	"media rights",
	"broadcast rights",
	"sponsorship deal",
	"player transfer",
	"roster move",
}

// SupportingKeywords each add a flat bonus regardless of position.
var SupportingKeywords = []string{
	"merger",
	"acquisition",
	"invests",
	"investment",
	"funding",
	"financing",
	"capital raise",
	"minority stake",
	"majority stake",
	"valuation",
	"financial results",
	"quarterly earnings",
	"earnings report",
	"earnings call",
	"revenue",
	"profit",
	"loss",
	"guidance",
	"expansion",
	"restructuring",
	"layoffs",
	"headcount",
	"hiring",
	"partnership",
	"sponsorship",
	"media rights",
	"broadcast deal",
	"licensing",
	"brand deal",
	"franchise",
	"player signing",
	"coaching staff",
	"transfer window",
}
