package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Change is a single structured diff entry between two specs
type Change struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Before   string `json:"before,omitempty"`
	After    string `json:"after,omitempty"`
	Breaking bool   `json:"breaking,omitempty"`
}

// Diff produces a structured diff of two validated specs. The walk is
// shallow: paths, operations, parameters, request bodies and response
// status codes. Schema internals are compared only for required fields.
func Diff(base, head *openapi3.T) []Change {
	var changes []Change

	basePaths := pathsMap(base)
	headPaths := pathsMap(head)

	for _, p := range sortedKeys(basePaths) {
		baseItem := basePaths[p]
		headItem, ok := headPaths[p]
		if !ok {
			for method := range baseItem.Operations() {
				changes = append(changes, Change{
					Type:     "endpoint_removed",
					Path:     fmt.Sprintf("/paths%s/%s", p, strings.ToLower(method)),
					Breaking: true,
				})
			}
			continue
		}
		changes = append(changes, diffPathItem(p, baseItem, headItem)...)
	}
	for _, p := range sortedKeys(headPaths) {
		if _, ok := basePaths[p]; !ok {
			for method := range headPaths[p].Operations() {
				changes = append(changes, Change{
					Type: "endpoint_added",
					Path: fmt.Sprintf("/paths%s/%s", p, strings.ToLower(method)),
				})
			}
		}
	}
	return changes
}

func diffPathItem(p string, base, head *openapi3.PathItem) []Change {
	var changes []Change
	baseOps := base.Operations()
	headOps := head.Operations()

	for _, method := range sortedOpKeys(baseOps) {
		baseOp := baseOps[method]
		headOp, ok := headOps[method]
		opPath := fmt.Sprintf("/paths%s/%s", p, strings.ToLower(method))
		if !ok {
			changes = append(changes, Change{Type: "endpoint_removed", Path: opPath, Breaking: true})
			continue
		}
		changes = append(changes, diffOperation(opPath, baseOp, headOp)...)
	}
	for _, method := range sortedOpKeys(headOps) {
		if _, ok := baseOps[method]; !ok {
			changes = append(changes, Change{
				Type: "endpoint_added",
				Path: fmt.Sprintf("/paths%s/%s", p, strings.ToLower(method)),
			})
		}
	}
	return changes
}

func diffOperation(opPath string, base, head *openapi3.Operation) []Change {
	var changes []Change

	baseParams := paramSet(base)
	headParams := paramSet(head)
	for name, required := range baseParams {
		if _, ok := headParams[name]; !ok {
			changes = append(changes, Change{
				Type:     "parameter_removed",
				Path:     opPath + "/parameters/" + name,
				Breaking: true,
			})
		} else if !required && headParams[name] {
			changes = append(changes, Change{
				Type:     "parameter_required",
				Path:     opPath + "/parameters/" + name,
				Before:   "optional",
				After:    "required",
				Breaking: true,
			})
		}
	}
	for name, required := range headParams {
		if _, ok := baseParams[name]; !ok {
			changes = append(changes, Change{
				Type:     "parameter_added",
				Path:     opPath + "/parameters/" + name,
				Breaking: required, // a new required parameter breaks existing callers
			})
		}
	}

	baseReq := requestBodyRequired(base)
	headReq := requestBodyRequired(head)
	if !baseReq && headReq {
		changes = append(changes, Change{
			Type:     "request_body_required",
			Path:     opPath + "/requestBody",
			Before:   "optional",
			After:    "required",
			Breaking: true,
		})
	}

	baseResp := responseCodes(base)
	headResp := responseCodes(head)
	for code := range baseResp {
		if !headResp[code] {
			changes = append(changes, Change{
				Type:     "response_removed",
				Path:     opPath + "/responses/" + code,
				Breaking: true,
			})
		}
	}
	for code := range headResp {
		if !baseResp[code] {
			changes = append(changes, Change{Type: "response_added", Path: opPath + "/responses/" + code})
		}
	}

	return changes
}

// ClassifyChanges maps structured diff entries to change indicator tokens
// and the affected METHOD:path endpoints
func ClassifyChanges(diff []Change) (changes []string, endpoints []string) {
	seen := map[string]bool{}
	for _, c := range diff {
		if ep, ok := endpointFromDiffPath(c.Path); ok && !seen[ep] {
			seen[ep] = true
			endpoints = append(endpoints, ep)
		}
		switch {
		case c.Type == "endpoint_removed" || c.Breaking:
			changes = append(changes, fmt.Sprintf("BREAKING_CHANGE: %s", c.Path))
		case c.Type == "endpoint_added" && strings.HasPrefix(c.Path, "/paths/"):
			ep, _ := endpointFromDiffPath(c.Path)
			changes = append(changes, fmt.Sprintf("API_EXPANSION: %s", ep))
		default:
			changes = append(changes, fmt.Sprintf("Modified: %s", c.Path))
		}
	}
	return changes, endpoints
}

// endpointFromDiffPath recovers "METHOD:path" from a diff path such as
// "/paths/users/{id}/get/parameters/limit"
func endpointFromDiffPath(diffPath string) (string, bool) {
	if !strings.HasPrefix(diffPath, "/paths/") {
		return "", false
	}
	rest := strings.TrimPrefix(diffPath, "/paths")
	segments := strings.Split(strings.TrimPrefix(rest, "/"), "/")
	for i, seg := range segments {
		switch strings.ToLower(seg) {
		case "get", "put", "post", "delete", "options", "head", "patch", "trace":
			apiPath := "/" + strings.Join(segments[:i], "/")
			return fmt.Sprintf("%s:%s", strings.ToUpper(seg), apiPath), true
		}
	}
	return "", false
}

func pathsMap(spec *openapi3.T) map[string]*openapi3.PathItem {
	out := map[string]*openapi3.PathItem{}
	if spec.Paths == nil {
		return out
	}
	for p, item := range spec.Paths.Map() {
		if item != nil {
			out[p] = item
		}
	}
	return out
}

// paramSet maps parameter name to whether it is required
func paramSet(op *openapi3.Operation) map[string]bool {
	out := map[string]bool{}
	for _, ref := range op.Parameters {
		if ref != nil && ref.Value != nil {
			out[ref.Value.Name] = ref.Value.Required
		}
	}
	return out
}

func requestBodyRequired(op *openapi3.Operation) bool {
	return op.RequestBody != nil && op.RequestBody.Value != nil && op.RequestBody.Value.Required
}

func responseCodes(op *openapi3.Operation) map[string]bool {
	out := map[string]bool{}
	if op.Responses == nil {
		return out
	}
	for code := range op.Responses.Map() {
		out[code] = true
	}
	return out
}

func sortedKeys(m map[string]*openapi3.PathItem) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedOpKeys(m map[string]*openapi3.Operation) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
