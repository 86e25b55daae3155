package scene

import (
	"math"
	"strings"

	"github.com/san-kum/posetrack/internal/curve"
	"github.com/san-kum/posetrack/internal/fbx"
)

const nameSep = "\x00\x01"

func className(name, class string) string { return name + nameSep + class }

// p builds a Properties70 entry.
func p(name, typ, label, flags string, values ...any) *fbx.Node {
	props := append([]any{name, typ, label, flags}, values...)
	return fbx.NewNode("P", props...)
}

type idAlloc struct{ next int64 }

func (a *idAlloc) id() int64 {
	a.next++
	return a.next
}

type connection struct {
	kind   string
	child  int64
	parent int64
	prop   string
}

func (c connection) node() *fbx.Node {
	if c.kind == "OP" {
		return fbx.NewNode("C", "OP", c.child, c.parent, c.prop)
	}
	return fbx.NewNode("C", "OO", c.child, c.parent)
}

type counts struct {
	models, stacks, layers, curveNodes, curves int
}

func (w *Writer) build() []*fbx.Node {
	ids := &idAlloc{next: 1000000}
	objects := fbx.NewNode("Objects")
	var conns []connection
	var takes []*fbx.Node
	var n counts

	for _, t := range w.tracks {
		first, last := span(t.translation)

		modelID := ids.id()
		objects.Add(model(modelID, t.name))
		conns = append(conns, connection{kind: "OO", child: modelID, parent: 0})
		n.models++

		stackName := t.name + " stack"
		stackID := ids.id()
		objects.Add(animStack(stackID, stackName, first, last))
		n.stacks++

		layerID := ids.id()
		objects.Add(fbx.NewNode("AnimationLayer", layerID, className(t.name+" layer", "AnimLayer"), ""))
		conns = append(conns, connection{kind: "OO", child: layerID, parent: stackID})
		n.layers++

		for _, ch := range []struct {
			short string
			data  curve.Channel
		}{{"T", t.translation}, {"R", t.rotation}} {
			nodeID := ids.id()
			objects.Add(curveNode(nodeID, ch.short, ch.data))
			conns = append(conns,
				connection{kind: "OO", child: nodeID, parent: layerID},
				connection{kind: "OP", child: nodeID, parent: modelID, prop: ch.data.Name},
			)
			n.curveNodes++

			for _, axis := range []struct {
				prop string
				c    curve.Curve
			}{{"d|X", ch.data.X}, {"d|Y", ch.data.Y}, {"d|Z", ch.data.Z}} {
				curveID := ids.id()
				objects.Add(animCurve(curveID, axis.c))
				conns = append(conns, connection{kind: "OP", child: curveID, parent: nodeID, prop: axis.prop})
				n.curves++
			}
		}

		takes = append(takes, fbx.NewNode("Take", stackName).Add(
			fbx.NewNode("FileName", stackName+".tak"),
			fbx.NewNode("LocalTime", ktime(first), ktime(last)),
			fbx.NewNode("ReferenceTime", ktime(first), ktime(last)),
		))
	}

	connections := fbx.NewNode("Connections")
	for _, c := range conns {
		connections.Add(c.node())
	}

	activeStack := ""
	if len(w.tracks) > 0 {
		activeStack = w.tracks[0].name + " stack"
	}

	return []*fbx.Node{
		w.headerExtension(),
		fbx.NewNode("FileId", w.fileID[:]),
		fbx.NewNode("CreationTime", w.now().Format("2006-01-02 15:04:05:000")),
		fbx.NewNode("Creator", w.creator),
		globalSettings(),
		documents(ids.id(), activeStack),
		fbx.NewNode("References"),
		definitions(n),
		objects,
		connections,
		fbx.NewNode("Takes").Add(append([]*fbx.Node{fbx.NewNode("Current", activeStack)}, takes...)...),
	}
}

func (w *Writer) headerExtension() *fbx.Node {
	ts := w.now()
	return fbx.NewNode("FBXHeaderExtension").Add(
		fbx.NewNode("FBXHeaderVersion", int32(1003)),
		fbx.NewNode("FBXVersion", int32(fbx.Version)),
		fbx.NewNode("EncryptionType", int32(0)),
		fbx.NewNode("CreationTimeStamp").Add(
			fbx.NewNode("Version", int32(1000)),
			fbx.NewNode("Year", int32(ts.Year())),
			fbx.NewNode("Month", int32(ts.Month())),
			fbx.NewNode("Day", int32(ts.Day())),
			fbx.NewNode("Hour", int32(ts.Hour())),
			fbx.NewNode("Minute", int32(ts.Minute())),
			fbx.NewNode("Second", int32(ts.Second())),
			fbx.NewNode("Millisecond", int32(ts.Nanosecond()/1e6)),
		),
		fbx.NewNode("Creator", w.creator),
	)
}

func globalSettings() *fbx.Node {
	return fbx.NewNode("GlobalSettings").Add(
		fbx.NewNode("Version", int32(1000)),
		fbx.NewNode("Properties70").Add(
			p("UpAxis", "int", "Integer", "", int32(1)),
			p("UpAxisSign", "int", "Integer", "", int32(1)),
			p("FrontAxis", "int", "Integer", "", int32(2)),
			p("FrontAxisSign", "int", "Integer", "", int32(1)),
			p("CoordAxis", "int", "Integer", "", int32(0)),
			p("CoordAxisSign", "int", "Integer", "", int32(1)),
			p("OriginalUpAxis", "int", "Integer", "", int32(-1)),
			p("OriginalUpAxisSign", "int", "Integer", "", int32(1)),
			p("UnitScaleFactor", "double", "Number", "", unitScaleMetres),
			p("OriginalUnitScaleFactor", "double", "Number", "", unitScaleMetres),
			p("AmbientColor", "ColorRGB", "Color", "", 0.0, 0.0, 0.0),
			p("DefaultCamera", "KString", "", "", "Producer Perspective"),
			p("TimeMode", "enum", "", "", timeModeFrames1000),
			p("TimeProtocol", "enum", "", "", int32(2)),
			p("SnapOnFrameMode", "enum", "", "", int32(0)),
			p("TimeSpanStart", "KTime", "Time", "", int64(0)),
			p("TimeSpanStop", "KTime", "Time", "", int64(math.MaxInt64)),
			p("CustomFrameRate", "double", "Number", "", -1.0),
		),
	)
}

func documents(id int64, activeStack string) *fbx.Node {
	return fbx.NewNode("Documents").Add(
		fbx.NewNode("Count", int32(1)),
		fbx.NewNode("Document", id, "Scene", "Scene").Add(
			fbx.NewNode("Properties70").Add(
				p("SourceObject", "object", "", ""),
				p("ActiveAnimStackName", "KString", "", "", activeStack),
			),
			fbx.NewNode("RootNode", int64(0)),
		),
	)
}

func definitions(n counts) *fbx.Node {
	total := 1 + n.models + n.stacks + n.layers + n.curveNodes + n.curves
	defs := fbx.NewNode("Definitions").Add(
		fbx.NewNode("Version", int32(100)),
		fbx.NewNode("Count", int32(total)),
	)
	for _, d := range []struct {
		typ   string
		count int
	}{
		{"GlobalSettings", 1},
		{"Model", n.models},
		{"AnimationStack", n.stacks},
		{"AnimationLayer", n.layers},
		{"AnimationCurveNode", n.curveNodes},
		{"AnimationCurve", n.curves},
	} {
		if d.count == 0 {
			continue
		}
		defs.Add(fbx.NewNode("ObjectType", d.typ).Add(fbx.NewNode("Count", int32(d.count))))
	}
	return defs
}

func model(id int64, name string) *fbx.Node {
	return fbx.NewNode("Model", id, className(name, "Model"), "Null").Add(
		fbx.NewNode("Version", int32(232)),
		fbx.NewNode("Properties70").Add(
			p(curve.TranslationChannel, "Lcl Translation", "", "A", 0.0, 0.0, 0.0),
			p(curve.RotationChannel, "Lcl Rotation", "", "A", 0.0, 0.0, 0.0),
		),
		fbx.NewNode("Shading", true),
		fbx.NewNode("Culling", "CullingOff"),
	)
}

func animStack(id int64, name string, first, last int64) *fbx.Node {
	return fbx.NewNode("AnimationStack", id, className(name, "AnimStack"), "").Add(
		fbx.NewNode("Properties70").Add(
			p("LocalStart", "KTime", "Time", "", ktime(first)),
			p("LocalStop", "KTime", "Time", "", ktime(last)),
			p("ReferenceStart", "KTime", "Time", "", ktime(first)),
			p("ReferenceStop", "KTime", "Time", "", ktime(last)),
		),
	)
}

func curveNode(id int64, short string, ch curve.Channel) *fbx.Node {
	return fbx.NewNode("AnimationCurveNode", id, className(short, "AnimCurveNode"), "").Add(
		fbx.NewNode("Properties70").Add(
			p("d|X", "Number", "", "A", firstValue(ch.X)),
			p("d|Y", "Number", "", "A", firstValue(ch.Y)),
			p("d|Z", "Number", "", "A", firstValue(ch.Z)),
		),
	)
}

func animCurve(id int64, c curve.Curve) *fbx.Node {
	times := make([]int64, len(c))
	values := make([]float32, len(c))
	for i, k := range c {
		times[i] = ktime(k.TimeMs)
		values[i] = float32(k.Value)
	}

	return fbx.NewNode("AnimationCurve", id, className("", "AnimCurve"), "").Add(
		fbx.NewNode("Default", firstValue(c)),
		fbx.NewNode("KeyVer", keyVersion),
		fbx.NewNode("KeyTime", times),
		fbx.NewNode("KeyValueFloat", values),
		fbx.NewNode("KeyAttrFlags", []int32{keyAttrFlags}),
		fbx.NewNode("KeyAttrDataFloat", keyAttrData),
		fbx.NewNode("KeyAttrRefCount", []int32{int32(len(c))}),
	)
}

func firstValue(c curve.Curve) float64 {
	if len(c) == 0 {
		return 0
	}
	return c[0].Value
}

func span(ch curve.Channel) (first, last int64) {
	if len(ch.X) == 0 {
		return 0, 0
	}
	return ch.X[0].TimeMs, ch.X[len(ch.X)-1].TimeMs
}

func splitName(full string) (name, class string) {
	name, class, _ = strings.Cut(full, nameSep)
	return name, class
}
