// Package match builds "contains" LIKE filters that treat user input
// literally. '!' is the escape character because a backslash means
// different things to MySQL and SQLite string literals.
package match

import "strings"

// Like is the comparison suffix for one column: "name" + match.Like.
const Like = " LIKE ? ESCAPE '!'"

var escaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Contains returns the pattern matching any value that contains term.
func Contains(term string) string {
	return "%" + escaper.Replace(term) + "%"
}
