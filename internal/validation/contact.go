package validation

import "github.com/contactform/backend/internal/model"

const contactSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name":    {"type": "string", "minLength": 2,  "maxLength": 255},
    "email":   {"type": "string", "format": "email", "maxLength": 255},
    "message": {"type": "string", "minLength": 10, "maxLength": 5000}
  },
  "required": ["name", "email", "message"]
}`

// ContactSchema validates contact creation payloads.
var ContactSchema = MustCompile(contactSchemaJSON, []Field{
	{
		Name: "name",
		Messages: map[Rule]string{
			RuleRequired: "Name is required",
			RuleEmpty:    "Name is required",
			RuleType:     "Name must be a string",
			RuleMin:      "Name must be at least 2 characters long",
			RuleMax:      "Name must not exceed 255 characters",
		},
	},
	{
		Name: "email",
		Messages: map[Rule]string{
			RuleRequired: "Email is required",
			RuleEmpty:    "Email is required",
			RuleType:     "Email must be a string",
			RuleFormat:   "Email must be a valid email address",
			RuleMax:      "Email must not exceed 255 characters",
		},
	},
	{
		Name: "message",
		Messages: map[Rule]string{
			RuleRequired: "Message is required",
			RuleEmpty:    "Message is required",
			RuleType:     "Message must be a string",
			RuleMin:      "Message must be at least 10 characters long",
			RuleMax:      "Message must not exceed 5000 characters",
		},
	},
})

// Contact validates doc and returns the sanitised input.
func Contact(doc map[string]any) (model.ContactInput, error) {
	clean, err := ContactSchema.Validate(doc)
	if err != nil {
		return model.ContactInput{}, err
	}
	// Validate guarantees all three are strings.
	return model.ContactInput{
		Name:    clean["name"].(string),
		Email:   clean["email"].(string),
		Message: clean["message"].(string),
	}, nil
}
