// Package visualizer renders entity networks as self-contained D3.js
// HTML pages for case review.
package visualizer

import (
	"bytes"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/lexgraph/lexgraph/pkg/knowledge"
)

const d3Template = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Entity Network: {{.CaseID}}</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body {
            margin: 0;
            font-family: Arial, sans-serif;
        }
        #network {
            width: 100%;
            height: 100vh;
            background-color: #f5f5f5;
        }
        .node {
            stroke: #fff;
            stroke-width: 1.5px;
        }
        .link {
            stroke: #999;
            stroke-opacity: 0.6;
        }
        .node-label {
            font-size: 10px;
            pointer-events: none;
        }
        .controls {
            position: absolute;
            top: 10px;
            left: 10px;
            background-color: rgba(255,255,255,0.85);
            padding: 10px;
            border-radius: 5px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
    </style>
</head>
<body>
    <div id="network"></div>
    <div class="controls">
        <h3>Case {{.CaseID}}</h3>
        <p>Entities: {{.EntityCount}}, Relationships: {{.RelationshipCount}}, Clusters: {{.ClusterCount}}</p>
        <div>
            <label for="entity-type-filter">Filter by entity type:</label>
            <select id="entity-type-filter">
                <option value="all">All Types</option>
            </select>
        </div>
    </div>

    <script>
        const networkData = {{.NetworkData}};

        const typeColors = {
            person: "#4e79a7",
            organization: "#f28e2b",
            location: "#59a14f",
            date: "#b6992d",
            document: "#9c755f",
            legal_principle: "#e15759",
            amount: "#76b7b2",
            concept: "#af7aa1"
        };
        const colorOf = type => typeColors[type] || "#bab0ac";

        const simulation = d3.forceSimulation(networkData.nodes)
            .force("link", d3.forceLink(networkData.links).id(d => d.id).distance(100))
            .force("charge", d3.forceManyBody().strength(-300))
            .force("center", d3.forceCenter(window.innerWidth / 2, window.innerHeight / 2));

        const svg = d3.select("#network")
            .append("svg")
            .attr("width", "100%")
            .attr("height", "100%")
            .call(d3.zoom().on("zoom", (event) => {
                g.attr("transform", event.transform);
            }));

        const g = svg.append("g");

        const entityTypes = [...new Set(networkData.nodes.map(node => node.type))];
        entityTypes.forEach(type => {
            d3.select("#entity-type-filter")
                .append("option")
                .attr("value", type)
                .text(type);
        });

        const link = g.append("g")
            .selectAll("line")
            .data(networkData.links)
            .enter()
            .append("line")
            .attr("class", "link")
            .attr("stroke-width", d => 1 + d.strength * 3)
            .attr("stroke-dasharray", d => d.bidirectional ? null : "4 2");

        const node = g.append("g")
            .selectAll("circle")
            .data(networkData.nodes)
            .enter()
            .append("circle")
            .attr("class", "node")
            .attr("r", d => 5 + d.importance * 8)
            .attr("fill", d => colorOf(d.type))
            .call(d3.drag()
                .on("start", dragstarted)
                .on("drag", dragged)
                .on("end", dragended));

        const label = g.append("g")
            .selectAll("text")
            .data(networkData.nodes)
            .enter()
            .append("text")
            .attr("class", "node-label")
            .attr("dx", 12)
            .attr("dy", ".35em")
            .text(d => d.label);

        node.append("title")
            .text(d => d.label + " (" + d.type + ")");

        link.append("title")
            .text(d => d.type + " (strength " + d.strength.toFixed(2) + ")");

        simulation.on("tick", () => {
            link
                .attr("x1", d => d.source.x)
                .attr("y1", d => d.source.y)
                .attr("x2", d => d.target.x)
                .attr("y2", d => d.target.y);

            node
                .attr("cx", d => d.x)
                .attr("cy", d => d.y);

            label
                .attr("x", d => d.x)
                .attr("y", d => d.y);
        });

        d3.select("#entity-type-filter").on("change", function() {
            const selectedType = this.value;

            if (selectedType === "all") {
                node.style("visibility", "visible");
                link.style("visibility", "visible");
                label.style("visibility", "visible");
                return;
            }

            node.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            label.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            link.style("visibility", d => {
                const sourceVisible = d.source.type === selectedType;
                const targetVisible = d.target.type === selectedType;
                return sourceVisible || targetVisible ? "visible" : "hidden";
            });
        });

        function dragstarted(event, d) {
            if (!event.active) simulation.alphaTarget(0.3).restart();
            d.fx = d.x;
            d.fy = d.y;
        }

        function dragged(event, d) {
            d.fx = event.x;
            d.fy = event.y;
        }

        function dragended(event, d) {
            if (!event.active) simulation.alphaTarget(0);
            d.fx = null;
            d.fy = null;
        }
    </script>
</body>
</html>
`

type networkNode struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Type       string  `json:"type"`
	Importance float64 `json:"importance"`
}

type networkLink struct {
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	Type          string  `json:"type"`
	Strength      float64 `json:"strength"`
	Bidirectional bool    `json:"bidirectional"`
}

type networkPayload struct {
	Nodes []networkNode `json:"nodes"`
	Links []networkLink `json:"links"`
}

// D3Visualizer writes force-directed HTML renderings of entity networks
type D3Visualizer struct {
	outputPath string
}

// NewD3Visualizer creates a visualizer writing to the given path
func NewD3Visualizer(outputPath string) *D3Visualizer {
	return &D3Visualizer{outputPath: outputPath}
}

// Render produces the HTML page for a network
func (v *D3Visualizer) Render(network *knowledge.EntityNetwork) ([]byte, error) {
	payload := networkPayload{
		Nodes: make([]networkNode, 0, len(network.Entities)),
		Links: make([]networkLink, 0, len(network.Relationships)),
	}
	for _, e := range network.Entities {
		payload.Nodes = append(payload.Nodes, networkNode{
			ID:         e.ID,
			Label:      e.Name,
			Type:       string(e.Type),
			Importance: e.Metadata.Importance,
		})
	}
	for _, rel := range network.Relationships {
		payload.Links = append(payload.Links, networkLink{
			Source:        rel.SourceID,
			Target:        rel.TargetID,
			Type:          string(rel.Type),
			Strength:      rel.Strength,
			Bidirectional: rel.Bidirectional,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal network payload")
	}

	tmpl, err := template.New("d3").Parse(d3Template)
	if err != nil {
		return nil, errors.Wrap(err, "parse template")
	}

	data := struct {
		CaseID            string
		NetworkData       template.JS
		EntityCount       int
		RelationshipCount int
		ClusterCount      int
	}{
		CaseID:            network.CaseID,
		NetworkData:       template.JS(raw),
		EntityCount:       len(network.Entities),
		RelationshipCount: len(network.Relationships),
		ClusterCount:      len(network.Clusters),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "render template")
	}
	return buf.Bytes(), nil
}

// Visualize renders the network and writes it to the output path
func (v *D3Visualizer) Visualize(network *knowledge.EntityNetwork) error {
	page, err := v.Render(network)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.outputPath), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	return errors.Wrap(os.WriteFile(v.outputPath, page, 0o644), "write visualization")
}
