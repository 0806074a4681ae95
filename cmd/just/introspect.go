// Introspection actions: --dump, --list/--list-all, --groups, --summary,
// --show, --variables, --evaluate (spec.md §6.1/§6.5). Each reads a resolved
// *justfile.Justfile and writes to stdout; none of them execute a recipe.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mtlynch/gojust/internal/dump"
	"github.com/mtlynch/gojust/internal/eval"
	"github.com/mtlynch/gojust/internal/lang/ast"
	"github.com/mtlynch/gojust/internal/justfile"
)

func runDump(jf *justfile.Justfile, g *globalFlags) int {
	if g.dumpFormat != "json" {
		fmt.Fprintln(os.Stderr, "error: not implemented: --dump-format just shares its rendering needs with the unimplemented --fmt printer")
		return 1
	}
	b, err := json.Marshal(dump.Dump(jf))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println(string(b))
	return 0
}

func runList(jf *justfile.Justfile, g *globalFlags) int {
	printRecipeList(jf, "", g)
	if g.listAll {
		for _, name := range jf.SubmoduleOrder {
			printRecipeList(jf.Submodules[name], name, g)
		}
	}
	return 0
}

func printRecipeList(jf *justfile.Justfile, prefix string, g *globalFlags) {
	for _, name := range jf.RecipeOrder {
		r := jf.Recipes[name]
		label := name
		if prefix != "" {
			label = prefix + "::" + name
		}
		fmt.Printf("    %s%s\n", label, paramSuffix(r.Parameters))
		for _, a := range r.Attributes {
			if a.Name == "doc" && len(a.Args) > 0 {
				fmt.Printf("        # %s\n", a.Args[0])
			}
		}
	}
	if g.noAliases {
		return
	}
	for _, name := range jf.AliasOrder {
		al := jf.Aliases[name]
		fmt.Printf("    %s -> %s\n", al.Name, al.Target)
	}
}

func paramSuffix(params []ast.Parameter) string {
	if len(params) == 0 {
		return ""
	}
	var parts []string
	for _, p := range params {
		parts = append(parts, p.Name)
	}
	return " " + strings.Join(parts, " ")
}

func runGroups(jf *justfile.Justfile) int {
	seen := make(map[string]bool)
	for _, name := range jf.RecipeOrder {
		for _, a := range jf.Recipes[name].Attributes {
			if a.Name == "group" && len(a.Args) > 0 {
				seen[a.Args[0]] = true
			}
		}
	}
	var groups []string
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		fmt.Println(g)
	}
	return 0
}

func runSummary(jf *justfile.Justfile) int {
	fmt.Println(strings.Join(jf.RecipeOrder, " "))
	return 0
}

func runVariables(jf *justfile.Justfile) int {
	fmt.Println(strings.Join(jf.AssignmentOrder, " "))
	return 0
}

func runShow(jf *justfile.Justfile, name string) int {
	r, ok := jf.Recipes[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "error: UnknownRecipe: no recipe named %q\n", name)
		return 1
	}
	for _, a := range r.Attributes {
		args := ""
		if len(a.Args) > 0 {
			args = "(" + strings.Join(a.Args, ", ") + ")"
		}
		fmt.Printf("[%s%s]\n", a.Name, args)
	}
	fmt.Printf("%s%s:\n", r.Name, paramSuffix(r.Parameters))
	for _, line := range r.Body {
		var b strings.Builder
		for _, f := range line.Fragments {
			if f.Expr != nil {
				b.WriteString("{{ ")
				b.WriteString(f.Expr.TokenLiteral())
				b.WriteString(" }}")
			} else {
				b.WriteString(f.Text)
			}
		}
		fmt.Printf("    %s\n", b.String())
	}
	return 0
}

func runEvaluate(jf *justfile.Justfile, g *globalFlags, args []string) int {
	ev := eval.New(jf, eval.NewContext(jf.ModulePath))

	if len(args) > 0 {
		name := args[0]
		if _, ok := jf.Assignments[name]; !ok {
			fmt.Fprintf(os.Stderr, "error: UndefinedVariable: no variable named %q\n", name)
			return 1
		}
		v, err := ev.EvalAssignment(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Println(v)
		return 0
	}

	for _, name := range jf.AssignmentOrder {
		v, err := ev.EvalAssignment(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Printf("%s := %q\n", name, v)
	}
	return 0
}
