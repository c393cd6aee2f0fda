package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/allisonkarlitskaya/flatpak-go/index"
)

func cmdList(idx *index.Client, repository string, stdout, stderr io.Writer) int {
	table, err := idx.Get(repository)
	if err != nil {
		return reportErr(stderr, err)
	}

	refs := make([]string, 0, len(table))
	for r := range table {
		refs = append(refs, r.String())
	}

	sort.Strings(refs)

	for _, r := range refs {
		fmt.Fprintln(stdout, r)
	}

	return 0
}
