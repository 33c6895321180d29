package cel

// RuleExamples lists compliance rules accepted by CompileRule.
var RuleExamples = map[string]string{
	"default":          `supported && score >= threshold`,
	"strict":           `supported && score > threshold`,
	"minimum_floor":    `supported && score >= threshold && score >= 50.0`,
	"rhel9_only_gate":  `supported && (os_major != 9 || score >= threshold)`,
	"profile_override": `supported && (profile_id.endsWith("_pci-dss") ? score >= 95.0 : score >= threshold)`,
}
