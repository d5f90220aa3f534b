package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/ablation/pkg/geom"
	"github.com/chazu/ablation/pkg/plan"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms plan source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: table-fiducial -> table_fiducial
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a point or direction.
type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %.1f %.1f %.1f)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

func (v *sexpVec3) point() geom.Point3 {
	return geom.Point3{X: v.vec.X, Y: v.vec.Y, Z: v.vec.Z}
}

// sexpTrajectory is returned by `trajectory` so scripts can print it.
type sexpTrajectory struct {
	index         int
	entry, target geom.Point3
}

func (t *sexpTrajectory) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(trajectory %d %s -> %s)", t.index, t.entry, t.target)
}
func (t *sexpTrajectory) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// float reads an optional numeric keyword into dst.
func (a kwArgs) float(key string, dst *float64) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toPoint extracts a Point3 from a sexpVec3.
func toPoint(s zygo.Sexp) (geom.Point3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.point(), nil
	}
	return geom.Point3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// pointArgs accepts either three numbers or a single vec3.
func pointArgs(args []zygo.Sexp) (geom.Point3, error) {
	switch len(args) {
	case 1:
		return toPoint(args[0])
	case 3:
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return geom.Point3{}, fmt.Errorf("coordinate %d: %w", i, err)
			}
			xyz[i] = f
		}
		return geom.Point3{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
	}
	return geom.Point3{}, fmt.Errorf("expected x y z or a vec3, got %d arguments", len(args))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toPoints converts a list of vec3 values.
func toPoints(s zygo.Sexp) ([]geom.Point3, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]geom.Point3, 0, len(items))
	for i, item := range items {
		p, err := toPoint(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the plan DSL builtins into a zygomys
// environment. The builtins populate p during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, p *plan.Plan) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		pt, err := pointArgs(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %w", err)
		}
		return &sexpVec3{vec: pt.Vec()}, nil
	})

	// -----------------------------------------------------------------------
	// (landmark 10 20 30) or (landmark (vec3 10 20 30))
	// -----------------------------------------------------------------------
	env.AddFunction("landmark", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pt, err := pointArgs(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("landmark: %w", err)
		}
		p.AddLandmark(pt)
		return &sexpVec3{vec: pt.Vec()}, nil
	})

	// -----------------------------------------------------------------------
	// (trajectory :entry (vec3 0 0 0) :target (vec3 0 0 -20))
	// -----------------------------------------------------------------------
	env.AddFunction("trajectory", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		ev, ok := pa.kw["entry"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("trajectory requires :entry")
		}
		tv, ok := pa.kw["target"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("trajectory requires :target")
		}
		entry, err := toPoint(ev)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("trajectory: entry: %w", err)
		}
		target, err := toPoint(tv)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("trajectory: target: %w", err)
		}
		if n := len(p.Landmarks); n%2 != 0 {
			return zygo.SexpNull, fmt.Errorf("trajectory: landmark %d has no pair; its entry would become that landmark's target", n-1)
		}
		p.AddTrajectory(entry, target)
		return &sexpTrajectory{index: len(p.Landmarks)/2 - 1, entry: entry, target: target}, nil
	})

	// -----------------------------------------------------------------------
	// (probe :name "cryo" :length 30 :radius 2.5 :round 0 :axis (vec3 0 0 -1))
	// -----------------------------------------------------------------------
	env.AddFunction("probe", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		spec := plan.ProbeSpec{}

		if v, ok := pa.kw["name"]; ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("probe: name: %w", err)
			}
			spec.Name = s
		}
		for _, f := range []struct {
			key string
			dst *float64
		}{
			{"length", &spec.Length},
			{"radius", &spec.Radius},
			{"round", &spec.Round},
		} {
			if err := pa.float(f.key, f.dst); err != nil {
				return zygo.SexpNull, fmt.Errorf("probe: %w", err)
			}
		}
		if v, ok := pa.kw["axis"]; ok {
			a, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("probe: axis: %w", err)
			}
			spec.Axis = a
		}

		p.Probe = &spec
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (tumor :sphere 8 :center (vec3 5 0 -15))
	// (tumor :box (vec3 10 12 8) :center (vec3 5 0 -15) :name "lesion")
	// -----------------------------------------------------------------------
	env.AddFunction("tumor", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if p.Tumor != nil {
			return zygo.SexpNull, fmt.Errorf("tumor is already defined")
		}
		pa := parseArgs(args)
		spec := plan.TumorSpec{Name: "tumor"}

		sphere, hasSphere := pa.kw["sphere"]
		box, hasBox := pa.kw["box"]
		switch {
		case hasSphere && hasBox:
			return zygo.SexpNull, fmt.Errorf("tumor: give either :sphere or :box, not both")
		case hasSphere:
			r, err := toFloat64(sphere)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("tumor: sphere: %w", err)
			}
			spec.Shape = plan.TumorSphere
			spec.Radius = r
		case hasBox:
			size, err := toVec3(box)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("tumor: box: %w", err)
			}
			spec.Shape = plan.TumorBox
			spec.Size = size
		default:
			return zygo.SexpNull, fmt.Errorf("tumor requires :sphere or :box")
		}

		if v, ok := pa.kw["center"]; ok {
			c, err := toPoint(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("tumor: center: %w", err)
			}
			spec.Center = c
		}
		if v, ok := pa.kw["name"]; ok {
			s, err := toString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("tumor: name: %w", err)
			}
			spec.Name = s
		}

		p.Tumor = &spec
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (bands -10 -5 -2) or (bands (list -10 -5 -2))
	// -----------------------------------------------------------------------
	env.AddFunction("bands", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		items := args
		if len(args) == 1 {
			if list, err := sexpListToSlice(args[0]); err == nil {
				items = list
			}
		}
		thresholds := make([]float64, 0, len(items))
		for i, item := range items {
			f, err := toFloat64(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("bands: threshold %d: %w", i, err)
			}
			thresholds = append(thresholds, f)
		}
		p.Thresholds = thresholds
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (fiducials :native (list (vec3 ...) ...) :table (list (vec3 ...) ...))
	// -----------------------------------------------------------------------
	env.AddFunction("fiducials", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if v, ok := pa.kw["native"]; ok {
			pts, err := toPoints(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("fiducials: native: %w", err)
			}
			p.NativeFiducials = pts
		}
		if v, ok := pa.kw["table"]; ok {
			pts, err := toPoints(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("fiducials: table: %w", err)
			}
			p.TableFiducials = pts
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (native-fiducial 1 2 3) and (table-fiducial 1 2 3) add one point each.
	//
	// Registered with underscores: the preprocessor rewrites the hyphen.
	// -----------------------------------------------------------------------
	env.AddFunction("native_fiducial", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pt, err := pointArgs(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("native-fiducial: %w", err)
		}
		p.NativeFiducials = append(p.NativeFiducials, pt)
		return &sexpVec3{vec: pt.Vec()}, nil
	})
	env.AddFunction("table_fiducial", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pt, err := pointArgs(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("table-fiducial: %w", err)
		}
		p.TableFiducials = append(p.TableFiducials, pt)
		return &sexpVec3{vec: pt.Vec()}, nil
	})
}
