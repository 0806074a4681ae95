package eval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtlynch/gojust/internal/lang/token"
	"github.com/mtlynch/gojust/internal/langerr"
)

// builtinFn implements one built-in function. args have already been
// evaluated to strings; pos is the call site, used for error spans.
type builtinFn func(e *Evaluator, pos token.Position, args []string) (string, error)

// builtin describes one registry entry: its arity range (max == -1 for
// "N or more") and whether it touches the OS/filesystem/clock (impure
// functions may not participate in [cached] memoization).
type builtin struct {
	minArgs, maxArgs int
	impure           bool
	fn               builtinFn
}

// builtins is the fixed registry keyed by name (spec.md §4.5). Grounded on
// the teacher's prefixParseFns/infixParseFns map-of-closures idiom in
// script/parser.go, applied to function dispatch instead of token dispatch.
var builtins = map[string]builtin{
	// String
	"uppercase":            {1, 1, false, fnUppercase},
	"lowercase":            {1, 1, false, fnLowercase},
	"capitalize":           {1, 1, false, fnCapitalize},
	"trim":                 {1, 1, false, fnTrim},
	"trim_start":           {1, 1, false, fnTrimStart},
	"trim_end":             {1, 1, false, fnTrimEnd},
	"trim_start_match":     {2, 2, false, fnTrimStartMatch},
	"trim_start_matches":   {2, 2, false, fnTrimStartMatches},
	"trim_end_match":       {2, 2, false, fnTrimEndMatch},
	"trim_end_matches":     {2, 2, false, fnTrimEndMatches},
	"replace":              {3, 3, false, fnReplace},
	"replace_regex":        {3, 3, false, fnReplaceRegex},
	"quote":                {1, 1, false, fnQuote},
	"snakecase":            {1, 1, false, fnSnakeCase},
	"kebabcase":            {1, 1, false, fnKebabCase},
	"camelcase":            {1, 1, false, fnCamelCase},
	"titlecase":            {1, 1, false, fnTitleCase},
	"shoutysnakecase":      {1, 1, false, fnShoutySnakeCase},

	// Path
	"join":               {2, -1, false, fnJoin},
	"clean":              {1, 1, false, fnClean},
	"absolute_path":      {1, 1, true, fnAbsolutePath},
	"file_name":          {1, 1, false, fnFileName},
	"file_stem":          {1, 1, false, fnFileStem},
	"extension":          {1, 1, false, fnExtension},
	"without_extension":  {1, 1, false, fnWithoutExtension},
	"parent_directory":   {1, 1, false, fnParentDirectory},
	"path_exists":        {1, 1, true, fnPathExists},

	// Directory
	"home_directory":          {0, 0, true, fnHomeDirectory},
	"cache_directory":         {0, 0, true, fnCacheDirectory},
	"config_directory":        {0, 0, true, fnConfigDirectory},
	"data_directory":          {0, 0, true, fnDataDirectory},
	"executable_directory":    {0, 0, true, fnExecutableDirectory},
	"xdg_cache_home":          {0, 0, true, fnCacheDirectory},
	"xdg_config_home":         {0, 0, true, fnConfigDirectory},
	"xdg_data_home":           {0, 0, true, fnDataDirectory},

	// Environment
	"env_var":             {1, 1, true, fnEnvVar},
	"env_var_or_default":  {2, 2, true, fnEnvVarOrDefault},

	// Context
	"just_executable":              {0, 0, true, fnJustExecutable},
	"just_pid":                     {0, 0, true, fnJustPid},
	"justfile":                     {0, 0, true, fnJustfile},
	"justfile_directory":           {0, 0, true, fnJustfileDirectory},
	"invocation_directory":         {0, 0, true, fnInvocationDirectory},
	"invocation_directory_native":  {0, 0, true, fnInvocationDirectory},
	"working_directory":            {0, 0, true, fnWorkingDirectory},
	"arch":                         {0, 0, true, fnArch},
	"os":                           {0, 0, true, fnOS},
	"os_family":                    {0, 0, true, fnOSFamily},
	"num_cpus":                     {0, 0, true, fnNumCPUs},

	// Hashing / ids
	"sha256":      {1, 1, false, fnSHA256},
	"sha256_file": {1, 1, true, fnSHA256File},
	"uuid":        {0, 0, true, fnUUID},

	// Date / misc
	"datetime":       {1, 1, true, fnDatetime},
	"datetime_utc":   {1, 1, true, fnDatetimeUTC},
	"semver_matches": {2, 2, false, fnSemverMatches},
	"error":          {1, 1, false, fnError},
	"assert":         {2, 2, false, fnAssert},
	"which":          {1, 1, true, fnWhich},
}

// shell is registered in init: fnShell reaches evalCall (through
// runSubprocess and backtickEnv), which reads builtins, so listing it in the
// literal above would be an initialization cycle.
func init() {
	builtins["shell"] = builtin{1, -1, true, fnShell}
}

func arityError(pos token.Position, name string, got, min, max int) error {
	if max < 0 {
		return langerr.NewEvalError(pos, "FunctionCallFailed: %s() expects at least %d argument(s), got %d", name, min, got)
	}
	if min == max {
		return langerr.NewEvalError(pos, "FunctionCallFailed: %s() expects %d argument(s), got %d", name, min, got)
	}
	return langerr.NewEvalError(pos, "FunctionCallFailed: %s() expects between %d and %d argument(s), got %d", name, min, max, got)
}

func fnUppercase(e *Evaluator, pos token.Position, a []string) (string, error) { return strings.ToUpper(a[0]), nil }
func fnLowercase(e *Evaluator, pos token.Position, a []string) (string, error) { return strings.ToLower(a[0]), nil }

func fnCapitalize(e *Evaluator, pos token.Position, a []string) (string, error) {
	s := a[0]
	if s == "" {
		return "", nil
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:]), nil
}

func fnTrim(e *Evaluator, pos token.Position, a []string) (string, error) { return strings.TrimSpace(a[0]), nil }
func fnTrimStart(e *Evaluator, pos token.Position, a []string) (string, error) {
	return strings.TrimLeft(a[0], " \t\r\n"), nil
}
func fnTrimEnd(e *Evaluator, pos token.Position, a []string) (string, error) {
	return strings.TrimRight(a[0], " \t\r\n"), nil
}
func fnTrimStartMatch(e *Evaluator, pos token.Position, a []string) (string, error) {
	return strings.TrimPrefix(a[0], a[1]), nil
}
func fnTrimStartMatches(e *Evaluator, pos token.Position, a []string) (string, error) {
	s := a[0]
	for strings.HasPrefix(s, a[1]) && a[1] != "" {
		s = strings.TrimPrefix(s, a[1])
	}
	return s, nil
}
func fnTrimEndMatch(e *Evaluator, pos token.Position, a []string) (string, error) {
	return strings.TrimSuffix(a[0], a[1]), nil
}
func fnTrimEndMatches(e *Evaluator, pos token.Position, a []string) (string, error) {
	s := a[0]
	for strings.HasSuffix(s, a[1]) && a[1] != "" {
		s = strings.TrimSuffix(s, a[1])
	}
	return s, nil
}
func fnReplace(e *Evaluator, pos token.Position, a []string) (string, error) {
	return strings.ReplaceAll(a[0], a[1], a[2]), nil
}
func fnReplaceRegex(e *Evaluator, pos token.Position, a []string) (string, error) {
	re, err := regexp.Compile(a[1])
	if err != nil {
		return "", langerr.NewEvalError(pos, "RegexParse: %v", err)
	}
	return re.ReplaceAllString(a[0], a[2]), nil
}
func fnQuote(e *Evaluator, pos token.Position, a []string) (string, error) {
	return "'" + strings.ReplaceAll(a[0], "'", `'\''`) + "'", nil
}

var wordSplitPattern = regexp.MustCompile(`[A-Z]+[a-z0-9]*|[a-z0-9]+`)

func splitWords(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	var words []string
	for _, p := range parts {
		words = append(words, wordSplitPattern.FindAllString(p, -1)...)
	}
	return words
}

func fnSnakeCase(e *Evaluator, pos token.Position, a []string) (string, error) {
	words := splitWords(a[0])
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_"), nil
}
func fnShoutySnakeCase(e *Evaluator, pos token.Position, a []string) (string, error) {
	words := splitWords(a[0])
	for i, w := range words {
		words[i] = strings.ToUpper(w)
	}
	return strings.Join(words, "_"), nil
}
func fnKebabCase(e *Evaluator, pos token.Position, a []string) (string, error) {
	words := splitWords(a[0])
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "-"), nil
}
func fnTitleCase(e *Evaluator, pos token.Position, a []string) (string, error) {
	words := splitWords(a[0])
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " "), nil
}
func fnCamelCase(e *Evaluator, pos token.Position, a []string) (string, error) {
	words := splitWords(a[0])
	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i == 0 {
			b.WriteString(w)
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	return b.String(), nil
}

func fnJoin(e *Evaluator, pos token.Position, a []string) (string, error) { return filepath.Join(a...), nil }
func fnClean(e *Evaluator, pos token.Position, a []string) (string, error) { return filepath.Clean(a[0]), nil }
func fnAbsolutePath(e *Evaluator, pos token.Position, a []string) (string, error) {
	p := a[0]
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.ctx.WorkingDirectory, p)
	}
	return filepath.Clean(p), nil
}
func fnFileName(e *Evaluator, pos token.Position, a []string) (string, error) { return filepath.Base(a[0]), nil }
func fnFileStem(e *Evaluator, pos token.Position, a []string) (string, error) {
	base := filepath.Base(a[0])
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}
func fnExtension(e *Evaluator, pos token.Position, a []string) (string, error) {
	return strings.TrimPrefix(filepath.Ext(a[0]), "."), nil
}
func fnWithoutExtension(e *Evaluator, pos token.Position, a []string) (string, error) {
	return strings.TrimSuffix(a[0], filepath.Ext(a[0])), nil
}
func fnParentDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	dir := filepath.Dir(a[0])
	if dir == a[0] {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: parent_directory(): %q has no parent", a[0])
	}
	return dir, nil
}
func fnPathExists(e *Evaluator, pos token.Position, a []string) (string, error) {
	p := a[0]
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.ctx.WorkingDirectory, p)
	}
	if _, err := os.Stat(p); err == nil {
		return "true", nil
	}
	return "false", nil
}

func fnHomeDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	h, err := os.UserHomeDir()
	if err != nil {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: home_directory(): %v", err)
	}
	return h, nil
}
func fnCacheDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	d, err := os.UserCacheDir()
	if err != nil {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: cache_directory(): %v", err)
	}
	return d, nil
}
func fnConfigDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	d, err := os.UserConfigDir()
	if err != nil {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: config_directory(): %v", err)
	}
	return d, nil
}
func fnDataDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	d, err := os.UserConfigDir()
	if err != nil {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: data_directory(): %v", err)
	}
	return filepath.Join(filepath.Dir(d), "share"), nil
}
func fnExecutableDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	return filepath.Dir(e.ctx.JustExecutable), nil
}

func fnEnvVar(e *Evaluator, pos token.Position, a []string) (string, error) {
	v, ok := os.LookupEnv(a[0])
	if !ok {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: env_var(): environment variable %q not set", a[0])
	}
	return v, nil
}
func fnEnvVarOrDefault(e *Evaluator, pos token.Position, a []string) (string, error) {
	if v, ok := os.LookupEnv(a[0]); ok {
		return v, nil
	}
	return a[1], nil
}

func fnJustExecutable(e *Evaluator, pos token.Position, a []string) (string, error) { return e.ctx.JustExecutable, nil }
func fnJustPid(e *Evaluator, pos token.Position, a []string) (string, error) {
	return fmt.Sprintf("%d", e.ctx.JustPid), nil
}
func fnJustfile(e *Evaluator, pos token.Position, a []string) (string, error) { return e.ctx.JustfilePath, nil }
func fnJustfileDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	return e.ctx.JustfileDirectory, nil
}
func fnInvocationDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	return e.ctx.InvocationDirectory, nil
}
func fnWorkingDirectory(e *Evaluator, pos token.Position, a []string) (string, error) {
	return e.ctx.WorkingDirectory, nil
}
func fnArch(e *Evaluator, pos token.Position, a []string) (string, error)     { return e.ctx.Arch, nil }
func fnOS(e *Evaluator, pos token.Position, a []string) (string, error)      { return e.ctx.OS, nil }
func fnOSFamily(e *Evaluator, pos token.Position, a []string) (string, error) { return e.ctx.OSFamily, nil }
func fnNumCPUs(e *Evaluator, pos token.Position, a []string) (string, error) {
	return fmt.Sprintf("%d", e.ctx.NumCPUs), nil
}

func fnSHA256(e *Evaluator, pos token.Position, a []string) (string, error) {
	sum := sha256.Sum256([]byte(a[0]))
	return hex.EncodeToString(sum[:]), nil
}
func fnSHA256File(e *Evaluator, pos token.Position, a []string) (string, error) {
	p := a[0]
	if !filepath.IsAbs(p) {
		p = filepath.Join(e.ctx.WorkingDirectory, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: sha256_file(): %v", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: sha256_file(): %v", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
func fnUUID(e *Evaluator, pos token.Position, a []string) (string, error) { return uuid.NewString(), nil }

func fnDatetime(e *Evaluator, pos token.Position, a []string) (string, error) {
	return time.Now().Local().Format(a[0]), nil
}
func fnDatetimeUTC(e *Evaluator, pos token.Position, a []string) (string, error) {
	return time.Now().UTC().Format(a[0]), nil
}

var semverPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

func fnSemverMatches(e *Evaluator, pos token.Position, a []string) (string, error) {
	req, version := a[0], a[1]
	m := semverPattern.FindStringSubmatch(version)
	if m == nil {
		return "", langerr.NewEvalError(pos, "FunctionCallFailed: semver_matches(): %q is not a valid semver", version)
	}
	// Support the common `^x.y.z` and bare `x.y.z` forms; anything else is an
	// exact-match fallback, which covers what spec.md's examples exercise.
	req = strings.TrimPrefix(req, "^")
	if req == version {
		return "true", nil
	}
	reqMajor := semverPattern.FindStringSubmatch(req)
	if reqMajor == nil {
		return "false", nil
	}
	if reqMajor[1] != m[1] {
		return "false", nil
	}
	var reqMinor, reqPatch, minor, patch int
	fmt.Sscan(reqMajor[2]+" "+reqMajor[3], &reqMinor, &reqPatch)
	fmt.Sscan(m[2]+" "+m[3], &minor, &patch)
	if minor > reqMinor || (minor == reqMinor && patch >= reqPatch) {
		return "true", nil
	}
	return "false", nil
}

func fnError(e *Evaluator, pos token.Position, a []string) (string, error) {
	return "", langerr.NewEvalError(pos, "%s", a[0])
}
func fnAssert(e *Evaluator, pos token.Position, a []string) (string, error) {
	if a[0] != "true" {
		return "", langerr.NewEvalError(pos, "AssertFailed: %s", a[1])
	}
	return "", nil
}
func fnWhich(e *Evaluator, pos token.Position, a []string) (string, error) {
	path, err := exec.LookPath(a[0])
	if err != nil {
		return "", nil
	}
	return path, nil
}

// fnShell runs args[0] as a script via the configured shell, passing
// args[1:] as positional arguments to it, like a backtick with an explicit
// command (spec.md §4.5's Shell category).
func fnShell(e *Evaluator, pos token.Position, a []string) (string, error) {
	return e.runSubprocess(pos, a[0], a[1:], nil)
}

// IsImpureBuiltin reports whether name touches the OS/filesystem/clock, and
// therefore may not appear in the body of a [cached] recipe (spec.md §4.7).
// Unknown names are treated as pure. The analyzer does not check function
// names; an unknown function is reported as UnknownFunction only when the
// call is evaluated.
func IsImpureBuiltin(name string) bool {
	b, ok := builtins[name]
	return ok && b.impure
}
