package domain

// UnknownSearchEngine is the name reported for codes outside the table.
const UnknownSearchEngine = "Unknown"

var searchEngines = [...]string{
	0:  "Undocumented",
	1:  "AltaVista",
	2:  "Ask",
	3:  "Baidu",
	4:  "Excite",
	5:  "Google",
	6:  "Looksmart",
	7:  "Lycos",
	8:  "MSN",
	9:  "Yahoo",
	10: "Cuil",
	11: "InfoSeek",
	12: "Miscellaneous",
}

// SearchEngineName maps a search engine code from the third answer octet
// to its name.
func SearchEngineName(code uint8) string {
	if int(code) < len(searchEngines) {
		return searchEngines[code]
	}
	return UnknownSearchEngine
}
