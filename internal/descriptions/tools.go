package descriptions

// Tool descriptions shown to MCP clients

const (
	SF2809FillDescription = `Fill the SF2809 health benefits election form and save the filled PDF.

**When to use:** You have enrollment details (name, address, enrollment code, coverage choices) and need the official SF2809 document with those values filled in.

**Arguments:**
• values: object mapping api names to values, e.g. {"6address1": "1800 F. Street NW"}. A value is a string, a number or, for choice fields, a list of strings.
• directory: optional sub-directory of the output directory to write into.

**Examples:**
• Address change: {"6address1": "1800 F. Street NW", "6addresscity": "Washington"}
• Enrollment event: {"enrollmenttype": "1B"}

**Common workflows:**
1. Discover fields with sf2809_fields → Build values → sf2809_fill
2. Fill → Read the returned path with a PDF reader to check the result

**Errors:** An unknown api name fails with UNKNOWN_FIELD and nothing is written. Option fields only accept the options listed by sf2809_fields.`

	SF2809FieldsDescription = `List every fillable field of the SF2809 form.

**When to use:** Before calling sf2809_fill, to find the api name for a field and the options a choice, checkbox or radio field accepts.

**Output:** One line per field in form order: api name, field type, the label printed on the form and, where the field has a fixed set of values, its options.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"sf2809_fill":   SF2809FillDescription,
	"sf2809_fields": SF2809FieldsDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}
