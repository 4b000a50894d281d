package filter

// Vocabulary is the keyword configuration the filter matches against. Terms
// are matched case-insensitively after whitespace normalization.
type Vocabulary struct {
	Role   []string
	Region []string
}

// DefaultVocabulary targets early-career technology roles in Australia.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Role:   DefaultRoleKeywords(),
		Region: DefaultRegionKeywords(),
	}
}

func DefaultRoleKeywords() []string {
	return []string{
		// pathways and seniority
		"intern", "internship", "graduate", "junior", "entry level", "entry-level",
		"cadet", "trainee", "apprentice", "vacation", "summer clerk", "early career",
		// roles
		"software", "developer", "engineer", "engineering", "programmer", "data",
		"analyst", "devops", "site reliability", "cyber", "security", "cloud",
		"machine learning", "artificial intelligence", "quality assurance",
		"test automation", "it support", "web", "mobile",
		// technologies
		"frontend", "front-end", "backend", "back-end", "full stack", "fullstack",
		"python", "java", "golang", "javascript", "typescript", "react", "node",
		".net", "c++", "rust", "kotlin", "ios", "android", "sql",
	}
}

func DefaultRegionKeywords() []string {
	return []string{
		"australia", "australian",
		// cities
		"sydney", "melbourne", "brisbane", "perth", "adelaide", "canberra",
		"hobart", "darwin", "gold coast", "newcastle", "wollongong", "geelong",
		"sunshine coast", "townsville", "cairns", "parramatta", "north sydney",
		// states and territories
		"new south wales", "victoria", "queensland", "western australia",
		"south australia", "tasmania", "northern territory",
		"australian capital territory",
		"nsw", "vic", "qld", "wa", "sa", "tas", "nt", "act",
	}
}
