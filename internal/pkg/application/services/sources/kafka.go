package sources

import (
	"context"
	"fmt"
)

var reservedKafkaKeys = reservedWith("host", "port", "topic", "mapping", "processing")

// KafkaRequest registers a Kafka topic as a catalog source. Host, port
// and topic are stored as extras so consumers can reconstruct the
// connection, and the resource URL is the kafka:// form of the same.
type KafkaRequest struct {
	Name       string            `json:"dataset_name"`
	Title      string            `json:"dataset_title"`
	OwnerOrg   string            `json:"owner_org"`
	Host       string            `json:"kafka_host"`
	Port       int               `json:"kafka_port"`
	Topic      string            `json:"kafka_topic"`
	Notes      string            `json:"dataset_description,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
	Mapping    map[string]any    `json:"mapping,omitempty"`
	Processing map[string]any    `json:"processing,omitempty"`
}

// KafkaUpdate modifies a Kafka source. Nil fields are not touched.
type KafkaUpdate struct {
	Name       *string           `json:"dataset_name,omitempty"`
	Title      *string           `json:"dataset_title,omitempty"`
	OwnerOrg   *string           `json:"owner_org,omitempty"`
	Host       *string           `json:"kafka_host,omitempty"`
	Port       *int              `json:"kafka_port,omitempty"`
	Topic      *string           `json:"kafka_topic,omitempty"`
	Notes      *string           `json:"dataset_description,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
	Mapping    map[string]any    `json:"mapping,omitempty"`
	Processing map[string]any    `json:"processing,omitempty"`
}

func kafkaURL(host string, port int, topic string) string {
	return fmt.Sprintf("kafka://%s:%d/%s", host, port, topic)
}

func (svc *sourceSvc) AddKafka(ctx context.Context, req KafkaRequest) (string, error) {
	kindExtras := map[string]string{
		"host":  req.Host,
		"port":  fmt.Sprintf("%d", req.Port),
		"topic": req.Topic,
	}
	encodeJSONExtras(kindExtras, req.Mapping, req.Processing)

	return svc.createSource(ctx,
		baseFields{name: req.Name, title: req.Title, ownerOrg: req.OwnerOrg, notes: req.Notes},
		kafkaURL(req.Host, req.Port, req.Topic), FormatKafka,
		fmt.Sprintf("Kafka topic %s on %s:%d", req.Topic, req.Host, req.Port),
		req.Extras, reservedKafkaKeys, kindExtras,
	)
}

func (svc *sourceSvc) UpdateKafka(ctx context.Context, id string, upd KafkaUpdate) (string, error) {
	return svc.updateSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		nil, FormatKafka, upd.Extras, reservedKafkaKeys, kafkaKindExtras(upd),
	)
}

func (svc *sourceSvc) PatchKafka(ctx context.Context, id string, upd KafkaUpdate) (string, error) {
	return svc.patchSource(ctx, id,
		basePatch{name: upd.Name, title: upd.Title, ownerOrg: upd.OwnerOrg, notes: upd.Notes},
		nil, FormatKafka, upd.Extras, reservedKafkaKeys, kafkaKindExtras(upd),
	)
}

// kafkaKindExtras converts the connection fields present on an update
// into extras entries. Absent fields produce no entry.
func kafkaKindExtras(upd KafkaUpdate) map[string]string {
	out := map[string]string{}
	if upd.Host != nil {
		out["host"] = *upd.Host
	}
	if upd.Port != nil {
		out["port"] = fmt.Sprintf("%d", *upd.Port)
	}
	if upd.Topic != nil {
		out["topic"] = *upd.Topic
	}
	encodeJSONExtras(out, upd.Mapping, upd.Processing)
	return out
}
