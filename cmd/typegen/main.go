// Command typegen parses Go struct definitions and generates TypeScript
// interfaces consumed by the browser client. Run from the project root:
//
//	go run ./cmd/typegen -out web/src/types/generated.ts
//
// The generated file replaces hand-maintained wire and settings types so
// that Go struct changes automatically propagate to the frontend.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

// structInfo stores parsed information about a Go struct.
type structInfo struct {
	name   string
	fields []fieldInfo
	pkg    string // source package path (for dedup)
}

// fieldInfo stores parsed information about a struct field.
type fieldInfo struct {
	jsonName  string
	goType    string
	optional  bool
	tsType    string // resolved TS type
	isPointer bool
}

// typeMapping maps Go type strings to TypeScript type strings.
var typeMapping = map[string]string{
	"string":                 "string",
	"int":                    "number",
	"int32":                  "number",
	"int64":                  "number",
	"float32":                "number",
	"float64":                "number",
	"bool":                   "boolean",
	"[]byte":                 "string", // base64 over the wire
	"time.Time":              "string", // RFC 3339 over the wire
	"time.Duration":          "number", // nanoseconds over the wire
	"json.RawMessage":        "unknown",
	"any":                    "unknown",
	"interface{}":            "unknown",
	"map[string]string":      "Record<string, string>",
	"map[string]interface{}": "Record<string, unknown>",
	"map[string]any":         "Record<string, unknown>",
}

// typeAliases maps Go named types (e.g. MessageType) to their underlying
// Go primitive. Populated at parse time by scanning `type X <primitive>` decls.
var typeAliases = map[string]string{}

// constValues maps a Go named type to its declared const string values.
// e.g. "Role" -> ["user", "assistant"]
// Populated at parse time by scanning const blocks.
var constValues = map[string][]string{}

// requiredFields lists struct+field combos that must stay required (not
// optional) in the generated TS even though config fields default to
// optional. Wire payload identity fields are always present at runtime.
var requiredFields = map[string]map[string]bool{
	"Envelope":    {"type": true},
	"WireMessage": {"id": true, "role": true, "content": true, "created_at": true},
	"WireChat":    {"id": true, "display_name": true, "created_at": true},
}

// wirePayloadStructs are emitted with all tagged fields required unless the
// tag says omitempty. Config structs instead default every field to optional.
var wirePayloadStructs = map[string]bool{
	"Envelope":               true,
	"TextInputPayload":       true,
	"RecordChunkPayload":     true,
	"CreateChatPayload":      true,
	"EditChatPayload":        true,
	"DeleteChatPayload":      true,
	"SelectChatPayload":      true,
	"SetInstructionsPayload": true,
	"WireMessage":            true,
	"MessagePayload":         true,
	"NoticePayload":          true,
	"TranscriptPayload":      true,
	"SpeechPayload":          true,
	"TakeawaysPayload":       true,
	"ShowPanelPayload":       true,
	"WireChat":               true,
	"ChatsPayload":           true,
	"ChatSelectedPayload":    true,
	"AgeWarningPayload":      true,
	"InstructionsPayload":    true,
	"ClearedPayload":         true,
}

// structsToGenerate lists the Go struct names to include in generation,
// in the order they should appear in the output. Qualified names
// ("rel/dir:Name") disambiguate when several packages define the same
// struct name (the service Configs all do).
var structsToGenerate = []string{
	// Wire protocol
	"Envelope",
	"TextInputPayload",
	"RecordChunkPayload",
	"CreateChatPayload",
	"EditChatPayload",
	"DeleteChatPayload",
	"SelectChatPayload",
	"SetInstructionsPayload",
	"WireMessage",
	"MessagePayload",
	"NoticePayload",
	"TranscriptPayload",
	"SpeechPayload",
	"TakeawaysPayload",
	"ShowPanelPayload",
	"WireChat",
	"ChatsPayload",
	"ChatSelectedPayload",
	"AgeWarningPayload",
	"InstructionsPayload",
	"ClearedPayload",
	// Top-level settings
	"SettingsConfig",
	"StoreConfig",
	"transports/websocket:Config",
	"ClientConfig",
	// Session config
	"SessionConfig",
	"SessionSTTConfig",
	"SessionDialogueConfig",
	"SessionTTSConfig",
	"ScreenConfig",
	// Handler configs
	"handlers/stt:STTConfig",
	"DialogueConfig",
	"handlers/tts:TTSConfig",
	// Service factories
	"STTFactoryConfig",
	"GenerationFactoryConfig",
	"TTSFactoryConfig",
	// Service configs
	"services/openrouter:Config",
	"services/deepgram/stt:Config",
	"services/deepgram/tts:Config",
	"services/elevenlabs/tts:Config",
}

// tsRenames maps Go struct names to preferred TypeScript interface names.
var tsRenames = map[string]string{
	"Envelope":                       "WireEnvelope",
	"SettingsConfig":                 "Settings",
	"transports/websocket:Config":    "ServerConfig",
	"ClientConfig":                   "RealtimeConfig",
	"SessionSTTConfig":               "SttConfig",
	"SessionDialogueConfig":          "GenerationConfig",
	"SessionTTSConfig":               "TtsConfig",
	"handlers/stt:STTConfig":         "SttHandlerConfig",
	"DialogueConfig":                 "DialogueHandlerConfig",
	"handlers/tts:TTSConfig":         "TtsHandlerConfig",
	"STTFactoryConfig":               "SttServiceConfig",
	"GenerationFactoryConfig":        "GenerationServiceConfig",
	"TTSFactoryConfig":               "TtsServiceConfig",
	"services/openrouter:Config":     "OpenRouterConfig",
	"services/deepgram/stt:Config":   "DeepgramSttConfig",
	"services/deepgram/tts:Config":   "DeepgramTtsConfig",
	"services/elevenlabs/tts:Config": "ElevenLabsTtsConfig",
}

// goTypeToTSRef maps a Go type reference (struct name) to its TS name.
var goTypeToTSRef = map[string]string{}

func init() {
	// Build reverse mapping: every struct we generate gets a TS name.
	// For qualified keys like "services/openrouter:Config", also register
	// the plain struct name so field type resolution can find it.
	for _, name := range structsToGenerate {
		tsName := name
		if rename, ok := tsRenames[name]; ok {
			tsName = rename
		}
		goTypeToTSRef[name] = tsName
		if idx := strings.LastIndex(name, ":"); idx >= 0 {
			plain := name[idx+1:]
			if _, exists := goTypeToTSRef[plain]; !exists {
				goTypeToTSRef[plain] = tsName
			}
		}
	}
}

func main() {
	outPath := flag.String("out", "web/src/types/generated.ts", "output TypeScript file path")
	flag.Parse()

	root, err := os.Getwd()
	if err != nil {
		fatal("getwd: %v", err)
	}

	dirs, err := discoverGoDirs(root)
	if err != nil {
		fatal("discover dirs: %v", err)
	}

	// Parse all structs from all discovered directories. Store under both
	// "StructName" and "rel/dir:StructName" keys; the qualified key allows
	// disambiguation when multiple packages define a struct with the same
	// name (e.g. "Config").
	allStructs := map[string]*structInfo{}
	for _, dir := range dirs {
		structs, err := parseDir(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", dir, err)
			continue
		}
		relDir, _ := filepath.Rel(root, dir)
		for name, si := range structs {
			qualifiedKey := relDir + ":" + name
			allStructs[qualifiedKey] = si
			if _, exists := allStructs[name]; !exists {
				allStructs[name] = si
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString("// Code generated by cmd/typegen; DO NOT EDIT.\n")
	buf.WriteString("// Source: Go structs from protocol/, factories/, handlers/, services/\n")
	buf.WriteString("//\n")
	buf.WriteString("// Regenerate: go run ./cmd/typegen -out web/src/types/generated.ts\n\n")

	for _, goName := range structsToGenerate {
		si, ok := allStructs[goName]
		if !ok {
			fmt.Fprintf(os.Stderr, "warning: struct %q not found, skipping\n", goName)
			continue
		}
		tsName := goName
		if rename, ok := tsRenames[goName]; ok {
			tsName = rename
		}
		writeInterface(&buf, tsName, si, goName)
	}

	writeMessageTypeUnion(&buf)

	absOut := *outPath
	if !filepath.IsAbs(absOut) {
		absOut = filepath.Join(root, absOut)
	}
	if err := os.MkdirAll(filepath.Dir(absOut), 0o755); err != nil {
		fatal("mkdir: %v", err)
	}
	if err := os.WriteFile(absOut, buf.Bytes(), 0o644); err != nil {
		fatal("write: %v", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", absOut, buf.Len())
}

// discoverGoDirs walks the project tree and returns all directories containing
// .go files, skipping vendor, .git, node_modules, and the typegen cmd itself.
func discoverGoDirs(root string) ([]string, error) {
	skipDirs := map[string]bool{
		"vendor":       true,
		"node_modules": true,
		".git":         true,
		"web":          true,
		"typegen":      true, // skip ourselves
	}

	seen := map[string]bool{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() {
			if skipDirs[info.Name()] || strings.HasPrefix(info.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(info.Name(), ".go") && !strings.HasSuffix(info.Name(), "_test.go") {
			seen[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// parseDir parses all .go files in a directory and extracts struct definitions.
func parseDir(dir string) (map[string]*structInfo, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	result := map[string]*structInfo{}
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, decl := range file.Decls {
				genDecl, ok := decl.(*ast.GenDecl)
				if !ok {
					continue
				}

				switch genDecl.Tok {
				case token.TYPE:
					for _, spec := range genDecl.Specs {
						ts, ok := spec.(*ast.TypeSpec)
						if !ok {
							continue
						}
						// Collect type aliases (e.g. `type MessageType string`).
						if ident, ok := ts.Type.(*ast.Ident); ok {
							typeAliases[ts.Name.Name] = ident.Name
							continue
						}
						st, ok := ts.Type.(*ast.StructType)
						if !ok {
							continue
						}
						if si := parseStruct(ts.Name.Name, st, dir); si != nil {
							result[ts.Name.Name] = si
						}
					}

				case token.CONST:
					// Collect const values grouped by their named type,
					// e.g. `MsgNotice MessageType = "notice"`.
					for _, spec := range genDecl.Specs {
						vs, ok := spec.(*ast.ValueSpec)
						if !ok || vs.Type == nil || len(vs.Values) == 0 {
							continue
						}
						typeName := typeExprToString(vs.Type)
						for _, val := range vs.Values {
							lit, ok := val.(*ast.BasicLit)
							if !ok || lit.Kind != token.STRING {
								continue
							}
							s := strings.Trim(lit.Value, "\"")
							constValues[typeName] = append(constValues[typeName], s)
						}
					}
				}
			}
		}
	}
	return result, nil
}

// parseStruct extracts field info from an AST struct type.
func parseStruct(name string, st *ast.StructType, pkg string) *structInfo {
	si := &structInfo{name: name, pkg: pkg}
	for _, field := range st.Fields.List {
		if field.Tag == nil {
			continue
		}
		tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
		jsonTag := tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		parts := strings.Split(jsonTag, ",")
		jsonName := parts[0]
		if jsonName == "" || jsonName == "-" {
			continue
		}

		// Secrets never reach the client.
		if jsonName == "api_key" {
			continue
		}

		omitempty := false
		for _, p := range parts[1:] {
			if p == "omitempty" {
				omitempty = true
			}
		}

		goType := typeExprToString(field.Type)
		isPointer := isPointerType(field.Type)

		fi := fieldInfo{
			jsonName:  jsonName,
			goType:    goType,
			optional:  omitempty || isPointer,
			isPointer: isPointer,
		}
		fi.tsType = resolveType(goType)
		si.fields = append(si.fields, fi)
	}
	return si
}

// typeExprToString converts an AST type expression to a string representation.
func typeExprToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeExprToString(t.X)
	case *ast.ArrayType:
		return "[]" + typeExprToString(t.Elt)
	case *ast.MapType:
		return "map[" + typeExprToString(t.Key) + "]" + typeExprToString(t.Value)
	case *ast.SelectorExpr:
		return typeExprToString(t.X) + "." + t.Sel.Name
	case *ast.InterfaceType:
		return "interface{}"
	default:
		return "unknown"
	}
}

// isPointerType checks if an AST expression is a pointer type.
func isPointerType(expr ast.Expr) bool {
	_, ok := expr.(*ast.StarExpr)
	return ok
}

// resolveType converts a Go type string to a TypeScript type string.
func resolveType(goType string) string {
	clean := strings.TrimPrefix(goType, "*")

	if ts, ok := typeMapping[clean]; ok {
		return ts
	}

	if strings.HasPrefix(clean, "[]") {
		inner := resolveType(clean[2:])
		return inner + "[]"
	}

	if strings.HasPrefix(clean, "map[") {
		if ts, ok := typeMapping[clean]; ok {
			return ts
		}
		return "Record<string, unknown>"
	}

	if tsRef, ok := goTypeToTSRef[clean]; ok {
		return tsRef
	}

	// Qualified name (e.g. core.Role).
	if idx := strings.LastIndex(clean, "."); idx >= 0 {
		shortName := clean[idx+1:]
		if tsRef, ok := goTypeToTSRef[shortName]; ok {
			return tsRef
		}
		if vals, ok := constValues[shortName]; ok && len(vals) > 0 {
			return buildUnionLiteral(vals)
		}
		if underlying, ok := typeAliases[shortName]; ok {
			return resolveType(underlying)
		}
	}

	// Named type with known const values becomes an inline union.
	if vals, ok := constValues[clean]; ok && len(vals) > 0 {
		return buildUnionLiteral(vals)
	}

	if underlying, ok := typeAliases[clean]; ok {
		return resolveType(underlying)
	}

	return "unknown"
}

// buildUnionLiteral returns a TS inline union type from string values,
// e.g. ["user", "assistant"] -> "'user' | 'assistant'".
func buildUnionLiteral(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, " | ")
}

// writeInterface writes a single TypeScript interface to the buffer.
// Config struct fields default to optional since the Go side applies
// defaults and JSON only contains overrides; wire payload fields are
// required unless tagged omitempty.
func writeInterface(buf *bytes.Buffer, tsName string, si *structInfo, goName string) {
	reqFields := requiredFields[goName]
	wire := wirePayloadStructs[goName]
	fmt.Fprintf(buf, "/** Generated from Go struct: %s */\n", goName)
	fmt.Fprintf(buf, "export interface %s {\n", tsName)
	for _, f := range si.fields {
		opt := "?"
		switch {
		case reqFields != nil && reqFields[f.jsonName]:
			opt = ""
		case wire && !f.optional:
			opt = ""
		}
		fmt.Fprintf(buf, "  %s%s: %s\n", f.jsonName, opt, f.tsType)
	}
	fmt.Fprintf(buf, "}\n\n")
}

// writeMessageTypeUnion emits the MessageType union collected from the
// protocol package's const block.
func writeMessageTypeUnion(buf *bytes.Buffer) {
	vals := constValues["MessageType"]
	if len(vals) == 0 {
		return
	}
	buf.WriteString("/** Generated from Go type: MessageType */\n")
	fmt.Fprintf(buf, "export type MessageType = %s\n", buildUnionLiteral(vals))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "typegen: "+format+"\n", args...)
	os.Exit(1)
}
