package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoundingBox",
		Fields: graphql.Fields{
			"south_west": &graphql.Field{Type: coordinateType, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.BoundingBox).SouthWest, nil
			}},
			"north_east": &graphql.Field{Type: coordinateType, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return p.Source.(domain.BoundingBox).NorthEast, nil
			}},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "View",
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.String, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return string(p.Source.(domain.NamedView).ID), nil
			}},
			"label":  &graphql.Field{Type: graphql.String},
			"center": &graphql.Field{Type: coordinateType},
			"bounds": &graphql.Field{Type: boundsType},
			"zoom": &graphql.Field{Type: graphql.Int, Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return int(p.Source.(domain.NamedView).Zoom), nil
			}},
			"fetchable": &graphql.Field{Type: graphql.Boolean},
			"search_area": &graphql.Field{
				Type:        boundsType,
				Description: "Box enclosing the point-of-interest search circle",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v := p.Source.(domain.NamedView)
					if !v.Fetchable {
						return nil, nil
					}
					return geospatial.SearchArea(v.Center, float64(deps.Search.Radius())), nil
				},
			},
		},
	})

	poiType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointOfInterest",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"label":    &graphql.Field{Type: graphql.String},
			"position": &graphql.Field{Type: coordinateType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"views": &graphql.Field{
				Type:        graphql.NewList(viewType),
				Description: "List all named views",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Search.Views(), nil
				},
			},
			"view": &graphql.Field{
				Type:        viewType,
				Description: "Get a view by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Search.View(domain.ViewID(p.Args["id"].(string)))
				},
			},
			"pointsOfInterest": &graphql.Field{
				Type:        graphql.NewList(poiType),
				Description: "Search points of interest around a fetchable view",
				Args: graphql.FieldConfigArgument{
					"view": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := domain.ViewID(p.Args["view"].(string))
					return deps.Search.PointsForView(p.Context, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
