package path

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParse(t *testing.T) {
	Convey("Parse", t, func() {
		Convey("treats empty text as the root", func() {
			id, err := Parse("")
			So(err, ShouldBeNil)
			So(id.IsRoot(), ShouldBeTrue)
		})

		Convey("splits on ::", func() {
			id, err := Parse("model::layers::0::weights")
			So(err, ShouldBeNil)
			So(len(id.Segments), ShouldEqual, 4)
			So(id.Segments[2].IsIndex, ShouldBeTrue)
			So(id.Segments[2].Index, ShouldEqual, 0)
			So(id.Relative, ShouldEqual, 0)
		})

		Convey("rewrites the legacy # separator", func() {
			id, err := Parse("model#layers#0")
			So(err, ShouldBeNil)
			So(id.String(), ShouldEqual, "model::layers::0")
		})

		Convey("counts leading :: as relativity", func() {
			id, err := Parse("::sibling")
			So(err, ShouldBeNil)
			So(id.Relative, ShouldEqual, 1)
			So(len(id.Segments), ShouldEqual, 1)

			id2, err := Parse("::::cousin")
			So(err, ShouldBeNil)
			So(id2.Relative, ShouldEqual, 2)
		})

		Convey("rejects whitespace touching the separator", func() {
			_, err := Parse("a :: b")
			So(err, ShouldNotBeNil)
		})

		Convey("rejects empty segments", func() {
			_, err := Parse("a::::b")
			So(err, ShouldNotBeNil)
			// NOTE: "a::::b" parses as relative==0 then a, "", b since the
			// leading-:: stripping only applies at the very front.
		})
	})
}

func TestJoin(t *testing.T) {
	Convey("Join", t, func() {
		Convey("a non-relative b simply replaces a", func() {
			a, _ := Parse("a::b::c")
			b, _ := Parse("x::y")
			So(Join(a, b).String(), ShouldEqual, "x::y")
		})

		Convey("one leading :: makes b a sibling of a", func() {
			a, _ := Parse("model::a")
			b, _ := Parse("::sibling")
			So(Join(a, b).String(), ShouldEqual, "model::sibling")
		})

		Convey("each additional leading :: ascends one more level (P6)", func() {
			a, _ := Parse("a::b::c")
			b, _ := Parse("::::cousin")
			// one :: -> sibling of a (a::b::cousin), second :: -> ascend once more (a::cousin)
			So(Join(a, b).String(), ShouldEqual, "a::cousin")
		})
	})
}

func TestDescend(t *testing.T) {
	Convey("Descend", t, func() {
		tree := map[string]interface{}{
			"a": map[string]interface{}{
				"b": []interface{}{10, 20, 30},
			},
		}

		Convey("follows string and index segments", func() {
			id, _ := Parse("a::b::1")
			v, err := Descend(tree, id)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 20)
		})

		Convey("fails on out-of-range index", func() {
			id, _ := Parse("a::b::9")
			_, err := Descend(tree, id)
			So(err, ShouldNotBeNil)
		})

		Convey("fails descending through a scalar", func() {
			id, _ := Parse("a::b::1::x")
			_, err := Descend(tree, id)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTraverse(t *testing.T) {
	Convey("Traverse visits every interior and leaf node", t, func() {
		tree := map[string]interface{}{
			"a": map[string]interface{}{"b": 1},
			"c": []interface{}{1, 2},
		}

		var seen []string
		Traverse(tree, func(id Identifier, node Node) {
			seen = append(seen, id.String())
		})

		So(seen, ShouldContain, "")
		So(seen, ShouldContain, "a")
		So(seen, ShouldContain, "a::b")
		So(seen, ShouldContain, "c")
		So(seen, ShouldContain, "c::0")
		So(seen, ShouldContain, "c::1")
	})
}
