package sparkwheel

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type linearModule struct {
	InFeatures, OutFeatures int
}

func registerLinear(e *Engine) {
	e.Registry().Register("Linear", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		in, _ := toInt(kwargs["in_features"])
		out, _ := toInt(kwargs["out_features"])
		return linearModule{InFeatures: in, OutFeatures: out}, nil
	})
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

func TestScenario6InstantiationWithNestedReference(t *testing.T) {
	Convey("resolve(lin) calls Linear(in_features=5, out_features=2)", t, func() {
		e := New(Options{})
		registerLinear(e)
		tree := map[string]interface{}{
			"n": 5,
			"lin": map[string]interface{}{
				"_target_":     "Linear",
				"in_features":  "@n",
				"out_features": 2,
			},
		}
		So(e.Merge(tree), ShouldBeNil)

		v, err := e.Resolve("lin")
		So(err, ShouldBeNil)
		mod, ok := v.(linearModule)
		So(ok, ShouldBeTrue)
		So(mod.InFeatures, ShouldEqual, 5)
		So(mod.OutFeatures, ShouldEqual, 2)
	})

	Convey("with _mode_: callable it returns a bound partial instead of invoking", t, func() {
		e := New(Options{})
		registerLinear(e)
		tree := map[string]interface{}{
			"n": 5,
			"lin": map[string]interface{}{
				"_target_":     "Linear",
				"_mode_":       "callable",
				"in_features":  "@n",
				"out_features": 2,
			},
		}
		So(e.Merge(tree), ShouldBeNil)

		v, err := e.Resolve("lin")
		So(err, ShouldBeNil)
		partial, ok := v.(Partial)
		So(ok, ShouldBeTrue)
		So(partial.Kwargs["in_features"], ShouldEqual, 5)
		So(partial.Kwargs["out_features"], ShouldEqual, 2)

		result, err := partial.Call(nil, nil)
		So(err, ShouldBeNil)
		mod, ok := result.(linearModule)
		So(ok, ShouldBeTrue)
		So(mod.InFeatures, ShouldEqual, 5)
	})
}

func TestDisabledInstantiationSite(t *testing.T) {
	Convey("_disabled_: true short-circuits to nil without invoking the target", t, func() {
		e := New(Options{})
		invoked := false
		e.Registry().Register("Noisy", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			invoked = true
			return "should not happen", nil
		})
		tree := map[string]interface{}{
			"thing": map[string]interface{}{
				"_target_":   "Noisy",
				"_disabled_": true,
			},
		}
		So(e.Merge(tree), ShouldBeNil)

		v, err := e.Resolve("thing")
		So(err, ShouldBeNil)
		So(v, ShouldBeNil)
		So(invoked, ShouldBeFalse)
	})
}

func TestInstantiationErrorPropagation(t *testing.T) {
	Convey("an invocation error is wrapped as an InstantiationError naming the site", t, func() {
		e := New(Options{})
		e.Registry().Register("Failing", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
			return nil, fmt.Errorf("boom")
		})
		So(e.Merge(map[string]interface{}{
			"thing": map[string]interface{}{"_target_": "Failing"},
		}), ShouldBeNil)

		_, err := e.Resolve("thing")
		So(err, ShouldNotBeNil)
		So(IsKind(err, InstantiationErrorKind), ShouldBeTrue)
	})
}

func TestMissingComponentRegistration(t *testing.T) {
	Convey("an unregistered _target_ fails with InstantiationError", t, func() {
		e := New(Options{})
		So(e.Merge(map[string]interface{}{
			"thing": map[string]interface{}{"_target_": "DoesNotExist"},
		}), ShouldBeNil)

		_, err := e.Resolve("thing")
		So(err, ShouldNotBeNil)
		So(IsKind(err, InstantiationErrorKind), ShouldBeTrue)
	})
}
