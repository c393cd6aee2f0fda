package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/allisonkarlitskaya/flatpak-go/index"
)

// cmdSearch lists every indexed ref whose string form contains term,
// case-insensitively, mirroring original_source's Cmd::Search arm.
func cmdSearch(idx *index.Client, repository, term string, stdout, stderr io.Writer) int {
	table, err := idx.Get(repository)
	if err != nil {
		return reportErr(stderr, err)
	}

	needle := strings.ToLower(term)

	var matches []string

	for r := range table {
		if strings.Contains(strings.ToLower(r.String()), needle) {
			matches = append(matches, r.String())
		}
	}

	sort.Strings(matches)

	for _, r := range matches {
		fmt.Fprintln(stdout, r)
	}

	return 0
}
