package moderation

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

const DefaultMinConfidence float32 = 60

type RekognitionAPI interface {
	DetectModerationLabels(ctx context.Context, params *rekognition.DetectModerationLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error)
}

// RekognitionClassifier sends frames to AWS Rekognition content moderation.
type RekognitionClassifier struct {
	api           RekognitionAPI
	minConfidence float32
}

// NewRekognitionClassifier builds the client from static credentials. Without credentials
// every Classify call fails, so runs end up in manual review instead of passing unchecked.
func NewRekognitionClassifier(region, accessKeyID, secretAccessKey string, minConfidence float32) *RekognitionClassifier {
	if accessKeyID == "" || secretAccessKey == "" {
		return &RekognitionClassifier{minConfidence: minConfidence}
	}

	client := rekognition.New(rekognition.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	})
	return NewRekognitionClassifierWithAPI(client, minConfidence)
}

func NewRekognitionClassifierWithAPI(api RekognitionAPI, minConfidence float32) *RekognitionClassifier {
	return &RekognitionClassifier{api: api, minConfidence: minConfidence}
}

func (r *RekognitionClassifier) Classify(ctx context.Context, framePath string) ([]Label, error) {
	if r.api == nil {
		return nil, NewErrClassificationService(errMissingCredentials)
	}

	image, err := os.ReadFile(framePath)
	if err != nil {
		return nil, NewErrStage(StateAnalyzingVisuals, err)
	}

	out, err := r.api.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &types.Image{Bytes: image},
		MinConfidence: aws.Float32(r.minConfidence),
	})
	if err != nil {
		return nil, NewErrClassificationService(err)
	}

	if len(out.ModerationLabels) == 0 {
		return nil, nil
	}

	labels := make([]Label, 0, len(out.ModerationLabels))
	for _, l := range out.ModerationLabels {
		labels = append(labels, Label{
			Name:       aws.ToString(l.Name),
			Confidence: float64(aws.ToFloat32(l.Confidence)),
		})
	}
	return labels, nil
}
