// Package manifest describes the signal channel to callers: its name,
// version, subject, and the methods it answers.
package manifest

// MethodMetadata holds optional per-method documentation.
type MethodMetadata struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Result describes the integer returned on success.
	Result string   `json:"result,omitempty" yaml:"result,omitempty"`
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Manifest is the channel descriptor served on the manifest subject.
type Manifest struct {
	Name            string                    `json:"name" yaml:"name"`
	Version         string                    `json:"version" yaml:"version"`
	Description     string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Channel         string                    `json:"channel" yaml:"channel"`
	Subject         string                    `json:"subject" yaml:"subject"`
	Methods         []string                  `json:"methods" yaml:"methods"`
	MethodsMetadata map[string]MethodMetadata `json:"methodsMetadata,omitempty" yaml:"methodsMetadata,omitempty"`
}

// HasMethod reports whether the manifest lists the named method.
func (m *Manifest) HasMethod(name string) bool {
	for _, method := range m.Methods {
		if method == name {
			return true
		}
	}
	return false
}
