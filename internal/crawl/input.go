package crawl

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"jobsift/internal/model"
)

// LoadJobURLs reads a batch file of "title,url" lines. Titles may
// themselves contain commas, so the split happens at the LAST comma.
// Blank lines are skipped; a line with no comma is treated as a bare
// URL with no title.
func LoadJobURLs(path string) ([]model.JobURL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open job list: %w", err)
	}
	defer f.Close()

	var jobs []model.JobURL
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		idx := strings.LastIndex(line, ",")
		if idx < 0 {
			jobs = append(jobs, model.JobURL{URL: line})
			continue
		}
		jobs = append(jobs, model.JobURL{
			Title: strings.TrimSpace(line[:idx]),
			URL:   strings.TrimSpace(line[idx+1:]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read job list: %w", err)
	}
	return jobs, nil
}
