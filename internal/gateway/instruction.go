package gateway

import "strings"

// BuildInstruction frames the user's prompt for the model.
func BuildInstruction(prompt string, hasReference bool) string {
	prompt = strings.TrimSpace(prompt)
	parts := []string{}
	if hasReference {
		parts = append(parts, "Generate a new image based on the attached reference image and the following prompt.")
		parts = append(parts, "Prompt: "+prompt)
		parts = append(parts, "Keep the subject and composition of the reference recognizable while applying the prompt.")
	} else {
		parts = append(parts, "Generate an image for the following prompt.")
		parts = append(parts, "Prompt: "+prompt)
	}
	parts = append(parts, "Return the image. If you cannot produce an image, describe the image you would create.")
	return strings.Join(parts, "\n")
}
