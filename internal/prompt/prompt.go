package prompt

import (
	"fmt"
	"os"
	"strings"
)

const (
	cvPlaceholder  = "{{CV}}"
	jobPlaceholder = "{{JOB_DESCRIPTION}}"
)

// Builder renders the analyzer prompt from a template file and the
// candidate's CV text. Both files are read once at construction so a
// batch run cannot fail halfway through on a missing file.
type Builder struct {
	template string
	cv       string
}

func NewBuilder(templatePath, cvPath string) (*Builder, error) {
	tpl, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read prompt template: %w", err)
	}
	cv, err := os.ReadFile(cvPath)
	if err != nil {
		return nil, fmt.Errorf("read cv: %w", err)
	}

	b := &Builder{template: string(tpl), cv: string(cv)}
	if !strings.Contains(b.template, jobPlaceholder) {
		return nil, fmt.Errorf("prompt template %s is missing the %s placeholder", templatePath, jobPlaceholder)
	}
	return b, nil
}

// Build substitutes the CV and the job description into the template.
func (b *Builder) Build(jobDescription string) string {
	out := strings.ReplaceAll(b.template, cvPlaceholder, b.cv)
	return strings.ReplaceAll(out, jobPlaceholder, jobDescription)
}
