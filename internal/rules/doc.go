// Package rules loads the rule file that drives a sync run.
//
// # Rule File Format
//
// The default format is line oriented. Blank lines and lines starting with
// "#" are ignored:
//
//	OWNER,acme
//	REPO,widget
//	RELEASE_REGEX,v(\d+)\.(\d+)
//	BRANCH,main,src/{0}
//	^widget-linux.*\.tar\.gz$,build/{0}/{1}/linux,loadlib
//	^widget-src.*\.zip$,src/{0}.{1},
//
// Rule lines are split from the right, so a name pattern may itself contain
// commas. The action column may be empty. Destinations are templates whose
// {N} fields are replaced with the groups captured by RELEASE_REGEX; BRANCH
// destinations receive the branch name as {0} and the literal "branch" as {1}.
//
// Files ending in .yaml or .yml use the same fields:
//
//	owner: acme
//	repo: widget
//	release_regex: 'v(\d+)\.(\d+)'
//	branch:
//	  name: main
//	  destination: src/{0}
//	rules:
//	  - pattern: '^widget-linux.*\.tar\.gz$'
//	    destination: build/{0}/{1}/linux
//	    action: loadlib
//
// Patterns follow Python "re.match" semantics: they are anchored at the
// start of the name but not at the end.
//
// # Errors
//
// Every problem is reported as *domain.ConfigError, including unknown
// post-action names, so a bad rule file fails before any network activity.
package rules
